package controller

import (
	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/protocol"
)

// Config holds the controller configuration.
type Config struct {
	// Speed is the SDR clock rate in Hz.
	Speed float64

	// Profile holds the unscaled timing intervals.
	Profile protocol.Profile

	// MaxIBIPayload bounds the payload bytes accepted after an IBI's MDB.
	MaxIBIPayload int

	// PollInterval is how often idle background tasks re-check their
	// enable flag.
	PollInterval bus.Time

	// StateObserver is called on every protocol state change (optional).
	StateObserver func(protocol.BusState)
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Speed:         protocol.FullSpeed,
		Profile:       protocol.ControllerProfile(),
		MaxIBIPayload: 255,
		PollInterval:  10 * bus.Nanosecond,
	}
}

// Option is a functional option for configuring the Controller.
type Option func(*Config)

// WithSpeed sets the SDR clock rate in Hz.
//
// Example:
//
//	ctl := controller.New(port, controller.WithSpeed(protocol.FullSpeed/4))
func WithSpeed(hz float64) Option {
	return func(c *Config) {
		c.Speed = hz
	}
}

// WithProfile replaces the default controller timing profile.
func WithProfile(p protocol.Profile) Option {
	return func(c *Config) {
		c.Profile = p
	}
}

// WithMaxIBIPayload bounds the IBI payload length, not counting the MDB.
func WithMaxIBIPayload(n int) Option {
	return func(c *Config) {
		c.MaxIBIPayload = n
	}
}

// WithPollInterval sets the re-check period of the IBI monitor.
func WithPollInterval(t bus.Time) Option {
	return func(c *Config) {
		c.PollInterval = t
	}
}

// WithStateObserver registers a callback receiving every state change.
func WithStateObserver(fn func(protocol.BusState)) Option {
	return func(c *Config) {
		c.StateObserver = fn
	}
}

// XferOption modifies a single transfer.
type XferOption func(*xferConfig)

type xferConfig struct {
	noStop bool
	legacy bool
}

func applyXfer(opts []XferOption) xferConfig {
	var x xferConfig
	for _, opt := range opts {
		opt(&x)
	}
	return x
}

// NoStop leaves the bus active after the transfer so that the next one
// begins with a repeated START.
func NoStop() XferOption {
	return func(x *xferConfig) {
		x.noStop = true
	}
}

// Legacy frames data with open-drain ACK/NACK bits instead of T-bits.
func Legacy() XferOption {
	return func(x *xferConfig) {
		x.legacy = true
	}
}

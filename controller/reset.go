package controller

import (
	"context"
	"fmt"

	"github.com/ardnew/softi3c/bus"
	"github.com/ardnew/softi3c/pkg"
	"github.com/ardnew/softi3c/protocol"
)

// Number of SDA falls with SCL low in the target reset pattern.
const resetPatternFalls = 7

// ResetKind selects the shape of a target reset request.
type ResetKind uint8

// Reset request shapes.
const (
	ResetKindPattern   ResetKind = iota // Reset pattern only
	ResetKindBroadcast                  // Broadcast RSTACT, then the pattern
	ResetKindDirected                   // Directed RSTACT per target, then the pattern
)

// String returns the kind name.
func (k ResetKind) String() string {
	switch k {
	case ResetKindPattern:
		return "pattern"
	case ResetKindBroadcast:
		return "broadcast"
	case ResetKindDirected:
		return "directed"
	default:
		return "unknown"
	}
}

// ResetTarget pairs a target address with the action it should take.
type ResetTarget struct {
	Address uint8
	Action  protocol.ResetAction
}

// ResetRequest describes a target reset. Build one with ResetPattern,
// BroadcastReset or DirectedReset.
type ResetRequest struct {
	Kind    ResetKind
	Action  protocol.ResetAction // ResetKindBroadcast
	Targets []ResetTarget        // ResetKindDirected

	// Merge sends one directed frame per distinct action instead of one
	// frame per target.
	Merge bool

	// QueryTime reads each target's reset duration first and idles for
	// the longest one after the pattern.
	QueryTime bool
}

// ResetPattern requests the bare reset pattern.
func ResetPattern() ResetRequest {
	return ResetRequest{Kind: ResetKindPattern}
}

// BroadcastReset requests a broadcast RSTACT with action a.
func BroadcastReset(a protocol.ResetAction) ResetRequest {
	return ResetRequest{Kind: ResetKindBroadcast, Action: a}
}

// DirectedReset requests a directed RSTACT for every target.
func DirectedReset(targets []ResetTarget, merge bool) ResetRequest {
	return ResetRequest{Kind: ResetKindDirected, Targets: targets, Merge: merge}
}

// WithTimeQuery returns r with reset-time queries enabled.
func (r ResetRequest) WithTimeQuery() ResetRequest {
	r.QueryTime = true
	return r
}

// ResetResult reports what a target reset did.
type ResetResult struct {
	Frames int             // RSTACT frames sent
	Times  map[uint8]uint8 // Queried reset times in microseconds
	Wait   bus.Time        // Idle time after the pattern
}

// resetPlan lists the targets to query and the frames to send.
func (c *Controller) resetPlan(r ResetRequest) (queries []ResetTarget, frames []CCC, err error) {
	switch r.Kind {
	case ResetKindPattern:
		if r.QueryTime {
			return nil, nil, &pkg.ResetQueryError{Reason: "no reset action to query"}
		}
		return nil, nil, nil

	case ResetKindBroadcast:
		frames = append(frames, CCC{
			Code:        protocol.CCCResetActionBroadcast,
			Defining:    uint8(r.Action),
			HasDefining: true,
		})
		if r.QueryTime {
			if _, ok := r.Action.TimeQuery(); !ok {
				return nil, nil, &pkg.ResetQueryError{Action: uint8(r.Action), Reason: "action has no reset time"}
			}
			for _, t := range c.Targets() {
				queries = append(queries, ResetTarget{Address: t.Address, Action: r.Action})
			}
			if len(queries) == 0 {
				return nil, nil, &pkg.ResetQueryError{Action: uint8(r.Action), Reason: "no registered targets to query"}
			}
		}
		return queries, frames, nil

	case ResetKindDirected:
		if len(r.Targets) == 0 {
			return nil, nil, fmt.Errorf("directed reset without targets: %w", pkg.ErrInvalidParameter)
		}
		for _, t := range r.Targets {
			if r.QueryTime {
				if _, ok := t.Action.TimeQuery(); !ok {
					return nil, nil, &pkg.ResetQueryError{
						Address: t.Address, Action: uint8(t.Action), Reason: "action has no reset time",
					}
				}
				queries = append(queries, t)
			}
			frames = addResetFrame(frames, t, r.Merge)
		}
		return queries, frames, nil

	default:
		return nil, nil, fmt.Errorf("reset kind %d: %w", r.Kind, pkg.ErrInvalidParameter)
	}
}

func addResetFrame(frames []CCC, t ResetTarget, merge bool) []CCC {
	if merge {
		for i := range frames {
			if frames[i].Defining == uint8(t.Action) {
				frames[i].Targets = append(frames[i].Targets, Directed{Address: t.Address})
				return frames
			}
		}
	}
	return append(frames, CCC{
		Code:        protocol.CCCResetActionDirected,
		Defining:    uint8(t.Action),
		HasDefining: true,
		Targets:     []Directed{{Address: t.Address}},
	})
}

// TargetReset resets targets: optional reset-time queries, the RSTACT
// frames, the reset pattern, then an idle period covering the longest
// queried reset time.
func (c *Controller) TargetReset(ctx context.Context, r ResetRequest) (ResetResult, error) {
	var res ResetResult

	queries, frames, err := c.resetPlan(r)
	if err != nil {
		return res, err
	}

	err = c.withBus(ctx, func() error {
		pkg.LogInfo(pkg.ComponentController, "target reset",
			"kind", r.Kind, "frames", len(frames), "queries", len(queries))

		var longest uint8
		for _, q := range queries {
			query, _ := q.Action.TimeQuery()
			rd, err := c.CCCRead(ctx, CCC{
				Code:        protocol.CCCResetActionDirected,
				Defining:    uint8(query),
				HasDefining: true,
			}, q.Address, 1)
			if err != nil {
				return err
			}
			if rd.NACK || len(rd.Data) == 0 {
				pkg.LogWarn(pkg.ComponentController, "reset time query not answered", pkg.KeyAddress, q.Address)
				continue
			}
			if res.Times == nil {
				res.Times = make(map[uint8]uint8)
			}
			res.Times[q.Address] = rd.Data[0]
			if rd.Data[0] > longest {
				longest = rd.Data[0]
			}
		}

		for _, f := range frames {
			if _, err := c.CCCWrite(ctx, f, NoStop()); err != nil {
				return err
			}
			res.Frames++
		}

		if err := c.resetPattern(ctx); err != nil {
			return err
		}
		res.Wait = bus.Time(longest) * bus.Microsecond
		return c.wait(ctx, res.Wait)
	})
	return res, err
}

// togglePattern holds SCL low and pulls SDA low falls times. SDA ends
// released when endHigh is set, driven low otherwise.
func (c *Controller) togglePattern(ctx context.Context, falls int, endHigh bool) error {
	c.scl(false)
	if err := c.wait(ctx, c.t.Hold); err != nil {
		return err
	}
	c.sda(true)
	if err := c.wait(ctx, c.t.Low); err != nil {
		return err
	}
	for i := 0; i < falls; i++ {
		c.sda(false)
		if err := c.wait(ctx, c.t.Low); err != nil {
			return err
		}
		if i == falls-1 && !endHigh {
			break
		}
		c.sda(true)
		if err := c.wait(ctx, c.t.Low); err != nil {
			return err
		}
	}
	return nil
}

// resetPattern emits seven SDA pulses with SCL low, a repeated START and
// a STOP.
func (c *Controller) resetPattern(ctx context.Context) error {
	c.setState(protocol.StateTargetReset)
	if err := c.togglePattern(ctx, resetPatternFalls, true); err != nil {
		return err
	}
	c.scl(true)
	if err := c.wait(ctx, c.t.CBSr); err != nil {
		return err
	}
	c.sda(false)
	if err := c.wait(ctx, c.t.CASr); err != nil {
		return err
	}
	c.hold = false
	return c.SendStop(ctx)
}

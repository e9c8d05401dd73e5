package crmclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// AssistState is the lifecycle of the assist panel for one opportunity.
type AssistState int

const (
	AssistIdle AssistState = iota
	AssistLoading
	AssistReady
	AssistFailed
)

func (s AssistState) String() string {
	switch s {
	case AssistIdle:
		return "idle"
	case AssistLoading:
		return "loading"
	case AssistReady:
		return "ready"
	case AssistFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AssistSnapshot is an immutable view of the controller. Result holds the
// last successful analysis even while State is Failed, so a failed refresh
// never blanks the panel.
type AssistSnapshot struct {
	State  AssistState
	Result *Assist
	Err    error
}

type assistAPI interface {
	LatestAssist(ctx context.Context, opportunityID string) (Assist, error)
	GenerateAssist(ctx context.Context, opportunityID string) (Assist, error)
}

// AssistController tracks assist loads and generations for one opportunity.
//
// Generations take precedence over latest fetches: a latest result never
// applies while a generation is in flight, and a generation outcome
// supersedes every request issued before it resolved, regardless of arrival
// order. The controller stays in Loading until an outcome that is allowed to
// apply has done so.
type AssistController struct {
	api           assistAPI
	opportunityID string

	mu            sync.Mutex
	issuedSeq     uint64
	appliedSeq    uint64
	appliedGenSeq uint64
	pendingGen    int
	result        *Assist
	lastErr       error
	failed        bool
	listeners     []func(AssistSnapshot)
}

func NewAssistController(api assistAPI, opportunityID string) *AssistController {
	return &AssistController{api: api, opportunityID: opportunityID}
}

// OnChange registers a listener invoked with a snapshot after every state
// transition. Listeners run on the goroutine that caused the transition.
func (c *AssistController) OnChange(fn func(AssistSnapshot)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Snapshot returns the current state.
func (c *AssistController) Snapshot() AssistSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *AssistController) snapshotLocked() AssistSnapshot {
	state := AssistIdle
	switch {
	case c.pendingGen > 0 || c.appliedSeq < c.issuedSeq:
		state = AssistLoading
	case c.failed:
		state = AssistFailed
	case c.result != nil:
		state = AssistReady
	}
	return AssistSnapshot{State: state, Result: c.result, Err: c.lastErr}
}

// LoadLatest fetches the stored analysis without triggering generation. The
// returned snapshot reflects the controller after this request resolved,
// which may already carry the outcome of a generation that outranked it.
// An opportunity with no stored analysis yet is not a failure; the
// controller returns to its previous state.
func (c *AssistController) LoadLatest(ctx context.Context) AssistSnapshot {
	seq := c.begin(false)
	result, err := c.api.LatestAssist(ctx, c.opportunityID)
	return c.finish(seq, false, result, err)
}

// Analyze requests a fresh generation. Its outcome wins over any latest
// fetch racing with it.
func (c *AssistController) Analyze(ctx context.Context) AssistSnapshot {
	seq := c.begin(true)
	result, err := c.api.GenerateAssist(ctx, c.opportunityID)
	return c.finish(seq, true, result, err)
}

func (c *AssistController) begin(generation bool) uint64 {
	c.mu.Lock()
	c.issuedSeq++
	seq := c.issuedSeq
	if generation {
		c.pendingGen++
	}
	snapshot := c.snapshotLocked()
	listeners := append([]func(AssistSnapshot){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return seq
}

func (c *AssistController) finish(seq uint64, generation bool, result Assist, err error) AssistSnapshot {
	c.mu.Lock()
	if generation {
		c.pendingGen--
		if seq > c.appliedGenSeq {
			c.appliedGenSeq = seq
			// Everything issued before this generation resolved is
			// superseded by it.
			c.appliedSeq = c.issuedSeq
			c.apply(result, err)
		}
	} else if c.pendingGen == 0 && seq > c.appliedSeq {
		c.appliedSeq = seq
		if !assistNotFound(err) {
			// A latest fetch that finds no stored analysis applies
			// nothing: the panel simply has nothing to show yet.
			c.apply(result, err)
		}
	}
	snapshot := c.snapshotLocked()
	listeners := append([]func(AssistSnapshot){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return snapshot
}

// assistNotFound reports whether err is the proxy saying no analysis has
// been stored for the opportunity.
func assistNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func (c *AssistController) apply(result Assist, err error) {
	if err != nil {
		c.failed = true
		c.lastErr = err
		return
	}
	c.failed = false
	c.lastErr = nil
	applied := result
	c.result = &applied
}

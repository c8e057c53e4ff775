package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"dday/internal/clock"
	appLog "dday/internal/log"
)

// ErrNotAuthorized is returned by a Center that is not allowed to post alerts.
var ErrNotAuthorized = errors.New("notify: not authorized")

// Request is a one-time local alert.
type Request struct {
	Identifier string
	Title      string
	Body       string
	FireAt     time.Time
}

// Center is the local notification service. Adding a request with an
// identifier that is already pending replaces it.
type Center interface {
	Add(ctx context.Context, req Request) error
	RemovePending(identifiers ...string)
	RemoveAllPending()
	Authorized(ctx context.Context) bool
}

// State of one identifier in a Center.
type State string

const (
	StateUnscheduled State = "unscheduled"
	StateScheduled   State = "scheduled"
)

type pendingAlert struct {
	req   Request
	timer *time.Timer
}

// LocalCenter is an in-process Center backed by timers. Delivered alerts are
// handed to Deliver; by default they are logged.
type LocalCenter struct {
	clock      clock.Clock
	authorized bool
	deliver    func(Request)

	mu        sync.Mutex
	pending   map[string]*pendingAlert
	delivered []Request
}

// NewLocalCenter creates a center. authorized models the OS-level permission.
func NewLocalCenter(clk clock.Clock, authorized bool, deliver func(Request)) *LocalCenter {
	if clk == nil {
		clk = clock.Real{}
	}
	if deliver == nil {
		deliver = func(r Request) {
			appLog.Info("notification delivered", "id", r.Identifier, "title", r.Title, "body", r.Body)
		}
	}
	return &LocalCenter{
		clock:      clk,
		authorized: authorized,
		deliver:    deliver,
		pending:    make(map[string]*pendingAlert),
	}
}

func (c *LocalCenter) Authorized(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized
}

// SetAuthorized flips the permission. Revoking it drops every pending alert,
// the way an OS does when the user disables notifications for the app.
func (c *LocalCenter) SetAuthorized(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authorized = on
	if !on {
		for id, p := range c.pending {
			p.timer.Stop()
			delete(c.pending, id)
		}
	}
}

func (c *LocalCenter) Add(_ context.Context, req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authorized {
		return ErrNotAuthorized
	}
	if req.Identifier == "" {
		return errors.New("notify: identifier is empty")
	}
	if old, ok := c.pending[req.Identifier]; ok {
		old.timer.Stop()
		delete(c.pending, req.Identifier)
	}

	delay := req.FireAt.Sub(c.clock.Now())
	if delay <= 0 {
		// A date trigger that has already passed never fires.
		appLog.Debug("notification trigger in the past; not scheduled", "id", req.Identifier, "fire_at", req.FireAt)
		return nil
	}

	p := &pendingAlert{req: req}
	p.timer = time.AfterFunc(delay, func() { c.fire(p) })
	c.pending[req.Identifier] = p
	return nil
}

func (c *LocalCenter) fire(p *pendingAlert) {
	c.mu.Lock()
	cur, ok := c.pending[p.req.Identifier]
	if !ok || cur != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, p.req.Identifier)
	c.delivered = append(c.delivered, p.req)
	deliver := c.deliver
	c.mu.Unlock()

	deliver(p.req)
}

func (c *LocalCenter) RemovePending(identifiers ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range identifiers {
		if p, ok := c.pending[id]; ok {
			p.timer.Stop()
			delete(c.pending, id)
		}
	}
}

// RemoveAllPending cancels every pending alert.
func (c *LocalCenter) RemoveAllPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, id)
	}
}

// Pending returns pending requests ordered by fire time.
func (c *LocalCenter) Pending() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p.req)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].Identifier < out[j].Identifier
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Delivered returns alerts that have fired, oldest first.
func (c *LocalCenter) Delivered() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.delivered...)
}

// State reports whether identifier currently has a pending alert.
func (c *LocalCenter) State(identifier string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[identifier]; ok {
		return StateScheduled
	}
	return StateUnscheduled
}

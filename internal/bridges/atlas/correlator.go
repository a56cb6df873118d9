package atlas

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// defaultCommandTimeout bounds each request/response exchange.
	defaultCommandTimeout = 5 * time.Second

	// maxCorrelationID is the largest id issued before wrapping to 1.
	maxCorrelationID = 1<<31 - 1
)

// ErrIDSpaceExhausted is returned if every id is pending at once.
var ErrIDSpaceExhausted = errors.New("atlas: no free correlation id")

// pendingRequest is one in-flight request awaiting its response.
type pendingRequest struct {
	method      string
	param       string
	reply       chan Message
	submittedAt time.Time
	deadline    time.Time
}

// Correlator matches responses to in-flight requests by id.
//
// Each connection owns one Correlator, so ids are unique per connection.
// Ids increase monotonically, wrap at 2^31-1, and skip any id that is
// still pending.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Correlator struct {
	mu      sync.Mutex
	nextID  int64
	maxID   int64
	pending map[int64]*pendingRequest
	closed  error

	timeout time.Duration
	logger  Logger
}

// NewCorrelator returns a Correlator whose requests time out after timeout
// (default 5s when zero).
func NewCorrelator(timeout time.Duration, logger Logger) *Correlator {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Correlator{
		maxID:   maxCorrelationID,
		pending: make(map[int64]*pendingRequest),
		timeout: timeout,
		logger:  logger,
	}
}

// Submit allocates an id, registers a waiter for method/param, and calls
// send with the id. It then blocks until the response arrives, the command
// timeout elapses, ctx ends, or the correlator is failed.
//
// Only the command timeout yields ErrTimeout. A caller whose ctx ends
// first gets ctx.Err() wrapped, which says nothing about the peer.
//
// The id is released on every exit path, so a late response for a
// timed-out request is dropped by Resolve.
func (c *Correlator) Submit(ctx context.Context, method, param string, send func(id int64) error) (Message, error) {
	id, req, err := c.register(method, param)
	if err != nil {
		return Message{}, err
	}
	defer c.release(id)

	if err := send(id); err != nil {
		return Message{}, err
	}

	timer := time.NewTimer(time.Until(req.deadline))
	defer timer.Stop()

	select {
	case msg, ok := <-req.reply:
		if !ok {
			return Message{}, c.failure()
		}
		return msg, nil
	case <-timer.C:
		c.logger.Debug("request unanswered",
			"id", id, "method", req.method, "param", req.param, "after", c.timeout)
		return Message{}, fmt.Errorf("%w: %s %s (id %d) after %v", ErrTimeout, req.method, req.param, id, c.timeout)
	case <-ctx.Done():
		return Message{}, fmt.Errorf("atlas: %s %s (id %d) abandoned: %w", req.method, req.param, id, ctx.Err())
	}
}

// Resolve delivers msg to the waiter registered under its id. It returns
// false when the id is unknown (late or duplicate response); such
// messages are logged and dropped.
func (c *Correlator) Resolve(msg Message) bool {
	if msg.ID == nil {
		return false
	}

	c.mu.Lock()
	req, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("dropping response for unknown id", "id", *msg.ID)
		return false
	}

	// Buffered with capacity 1 and removed from pending above, so this
	// send never blocks.
	req.reply <- msg
	return true
}

// FailAll releases every waiter with err and rejects further submissions.
// Used when the owning connection is torn down.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed == nil {
		c.closed = err
	}
	for id, req := range c.pending {
		close(req.reply)
		delete(c.pending, id)
	}
}

// Pending returns the number of in-flight requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) register(method, param string) (int64, *pendingRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed != nil {
		return 0, nil, c.closed
	}

	id, err := c.allocate()
	if err != nil {
		return 0, nil, err
	}

	now := time.Now()
	req := &pendingRequest{
		method:      method,
		param:       param,
		reply:       make(chan Message, 1),
		submittedAt: now,
		deadline:    now.Add(c.timeout),
	}
	c.pending[id] = req
	return id, req, nil
}

// allocate must be called with c.mu held.
func (c *Correlator) allocate() (int64, error) {
	for range c.maxID {
		c.nextID++
		if c.nextID > c.maxID {
			c.nextID = 1
		}
		if _, busy := c.pending[c.nextID]; !busy {
			return c.nextID, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}

func (c *Correlator) release(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Correlator) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed != nil {
		return c.closed
	}
	return ErrClosed
}

package atlas

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Default connection settings for the processor's control port.
const (
	DefaultPort = 5321

	defaultConnectTimeout       = 5 * time.Second
	defaultKeepAliveInterval    = 240 * time.Second
	defaultMaxMissedKeepAlives  = 3
	defaultReconnectDelay       = 5 * time.Second
	defaultMaxReconnectAttempts = 10

	// readBufferSize is the size of the socket read buffer.
	readBufferSize = 4096
)

// State is the lifecycle state of the client connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DialFunc opens the transport connection. Tests substitute it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Config holds processor connection settings. Zero values take defaults.
type Config struct {
	Host string
	Port int

	ConnectTimeout time.Duration
	CommandTimeout time.Duration

	// KeepAliveInterval is how often the KeepAlive parameter is read.
	KeepAliveInterval time.Duration

	// MaxMissedKeepAlives is the number of consecutive unanswered
	// requests after which the connection is declared dead.
	MaxMissedKeepAlives int

	// ReconnectDelay is the constant wait before each reconnect attempt.
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	Dial DialFunc
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = defaultCommandTimeout
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = defaultKeepAliveInterval
	}
	if c.MaxMissedKeepAlives <= 0 {
		c.MaxMissedKeepAlives = defaultMaxMissedKeepAlives
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.Dial == nil {
		d := &net.Dialer{}
		c.Dial = d.DialContext
	}
}

// Stats holds operational statistics.
type Stats struct {
	RequestsTotal    uint64
	ResponsesTotal   uint64
	TimeoutsTotal    uint64
	UpdatesTotal     uint64
	ErrorsTotal      uint64
	ReconnectsTotal  uint64
	KeepAlivesMissed uint64
	PendingRequests  int
	Subscriptions    int
	State            State
	LastActivity     time.Time
}

// Client is a JSON-RPC client for the zone audio processor.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Update and subscription callbacks run on internal goroutines and
//     must not call Disconnect.
//
// Reconnection:
//   - After MaxMissedKeepAlives consecutive timeouts or a read/write
//     failure the client enters StateError and reconnects every
//     ReconnectDelay, up to MaxReconnectAttempts times.
//   - Requests issued during a reconnect wait for it; once attempts are
//     exhausted they fail immediately with ErrNotConnected.
//   - Meter subscriptions are not restored; resubscribe from the
//     state-change callback.
type Client struct {
	cfg  Config
	addr string

	mu           sync.Mutex
	state        State
	sess         *session
	stateCh      chan struct{} // closed and replaced on every state change
	stop         *closeOnce    // closed by Disconnect
	reconnectErr error

	reconnecting atomic.Bool
	wg           sync.WaitGroup

	callbackMu    sync.RWMutex
	onStateChange func(State)
	onUpdate      func(Value)

	logger   Logger
	loggerMu sync.RWMutex

	lastActivity     atomic.Int64
	requestsTotal    atomic.Uint64
	responsesTotal   atomic.Uint64
	timeoutsTotal    atomic.Uint64
	updatesTotal     atomic.Uint64
	errorsTotal      atomic.Uint64
	reconnectsTotal  atomic.Uint64
	keepAlivesMissed atomic.Uint64
}

// session is one open TCP connection and everything scoped to it.
type session struct {
	conn    net.Conn
	corr    *Correlator
	decoder *Decoder
	writeMu sync.Mutex

	done *closeOnce
	wg   sync.WaitGroup

	// missed counts consecutive requests that timed out.
	missed atomic.Int32

	subsMu sync.Mutex
	subs   map[string]*MeterSubscription
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:     cfg,
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		state:   StateDisconnected,
		stateCh: make(chan struct{}),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger. Call before Connect so the correlator of
// each new session picks it up.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// SetOnStateChange registers a callback for state transitions. It runs on
// the goroutine that caused the transition.
func (c *Client) SetOnStateChange(fn func(State)) {
	c.callbackMu.Lock()
	c.onStateChange = fn
	c.callbackMu.Unlock()
}

// SetOnUpdate registers a callback for unsolicited update notifications.
func (c *Client) SetOnUpdate(fn func(Value)) {
	c.callbackMu.Lock()
	c.onUpdate = fn
	c.callbackMu.Unlock()
}

// Addr returns the processor address.
func (c *Client) Addr() string {
	return c.addr
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WaitConnected blocks until a session is up. It returns at once with
// ErrNotConnected when no connect or reconnect is in flight, including
// after reconnect attempts are exhausted.
func (c *Client) WaitConnected(ctx context.Context) error {
	_, err := c.readySession(ctx)
	return err
}

// IsConnected reports whether a session is up.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect opens the connection. It is a no-op when already connected or
// connecting.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting || c.reconnecting.Load() {
		c.mu.Unlock()
		return nil
	}
	c.stop = newCloseOnce()
	c.reconnectErr = nil
	stop := c.stop
	notify := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	fire(notify)

	sess, err := c.dial(ctx)
	if err != nil {
		c.errorsTotal.Add(1)
		c.transition(stop, StateDisconnected)
		return err
	}

	if !c.install(sess, stop) {
		sess.close(ErrClosed)
		return fmt.Errorf("%w: disconnected during connect", ErrNotConnected)
	}

	c.logInfo("connected to audio processor", "addr", c.addr)
	return nil
}

// Disconnect closes the connection, stops any reconnect loop, and fails
// all in-flight requests. It blocks until internal goroutines exit.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.stop != nil {
		c.stop.Close()
	}
	sess := c.sess
	c.sess = nil
	notify := c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if sess != nil {
		sess.close(fmt.Errorf("%w: client disconnected", ErrClosed))
		sess.wg.Wait()
	}
	c.wg.Wait()
	fire(notify)

	if sess != nil {
		c.logInfo("disconnected from audio processor", "addr", c.addr)
	}
	return nil
}

// Get reads a parameter. An empty format selects "val" for numeric
// parameters and "str" for string parameters.
func (c *Client) Get(ctx context.Context, param, format string) (Value, error) {
	format = defaultFormat(param, format)
	if err := ValidateGet(param, format); err != nil {
		return Value{}, err
	}

	sess, err := c.readySession(ctx)
	if err != nil {
		return Value{}, err
	}

	msg, err := c.roundTrip(ctx, sess, Request{
		Method: MethodGet,
		Params: Params{Param: param, Fmt: format},
	})
	if err != nil {
		return Value{}, err
	}

	v, err := DecodeValue(msg.Result)
	if err != nil {
		return Value{}, err
	}
	if v.Param == "" {
		v.Param = param
	}
	return v, nil
}

// Set writes a parameter. The value is validated against the parameter
// table before anything is sent.
func (c *Client) Set(ctx context.Context, param string, value any, format string) error {
	format = defaultFormat(param, format)
	wire, err := ValidateSet(param, value, format)
	if err != nil {
		return err
	}

	sess, err := c.readySession(ctx)
	if err != nil {
		return err
	}

	_, err = c.roundTrip(ctx, sess, Request{
		Method: MethodSet,
		Params: Params{Param: param, Value: wire, Fmt: format},
	})
	return err
}

// Bump adjusts a numeric parameter by delta (absolute units).
func (c *Client) Bump(ctx context.Context, param string, delta float64) error {
	if err := ValidateBump(param, delta); err != nil {
		return err
	}

	sess, err := c.readySession(ctx)
	if err != nil {
		return err
	}

	_, err = c.roundTrip(ctx, sess, Request{
		Method: MethodBump,
		Params: Params{Param: param, Value: delta},
	})
	return err
}

// Subscribe polls param every interval and passes each reading to cb.
// Subscribing an already subscribed parameter replaces the old
// subscription. The connection must be up.
func (c *Client) Subscribe(param string, interval time.Duration, cb func(MeterUpdate)) (*MeterSubscription, error) {
	format := defaultFormat(param, "")
	if err := ValidateGet(param, format); err != nil {
		return nil, err
	}
	if interval == 0 {
		interval = defaultMeterInterval
	}
	if interval < minMeterInterval {
		return nil, fmt.Errorf("%w: interval %v below minimum %v", ErrValidation, interval, minMeterInterval)
	}

	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil, ErrNotConnected
	}

	sub := newMeterSubscription(param, format, interval, cb)
	if !sess.addSubscription(sub) {
		return nil, ErrNotConnected
	}
	go c.pollLoop(sess, sub)

	c.logDebug("meter subscription started", "param", param, "interval", interval)
	return sub, nil
}

// Unsubscribe stops polling param.
func (c *Client) Unsubscribe(param string) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil || !sess.removeSubscription(param) {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, param)
	}
	c.logDebug("meter subscription stopped", "param", param)
	return nil
}

// Subscriptions returns the parameters currently being polled.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return nil
	}

	sess.subsMu.Lock()
	defer sess.subsMu.Unlock()
	out := make([]string, 0, len(sess.subs))
	for p := range sess.subs {
		out = append(out, p)
	}
	return out
}

// HealthCheck reads the KeepAlive parameter.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return ErrNotConnected
	}
	_, err := c.roundTrip(ctx, sess, keepAliveRequest())
	return err
}

// Stats returns operational statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	state := c.state
	sess := c.sess
	c.mu.Unlock()

	s := Stats{
		RequestsTotal:    c.requestsTotal.Load(),
		ResponsesTotal:   c.responsesTotal.Load(),
		TimeoutsTotal:    c.timeoutsTotal.Load(),
		UpdatesTotal:     c.updatesTotal.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
		ReconnectsTotal:  c.reconnectsTotal.Load(),
		KeepAlivesMissed: c.keepAlivesMissed.Load(),
		State:            state,
	}
	if ts := c.lastActivity.Load(); ts > 0 {
		s.LastActivity = time.Unix(0, ts)
	}
	if sess != nil {
		s.PendingRequests = sess.corr.Pending()
		sess.subsMu.Lock()
		s.Subscriptions = len(sess.subs)
		sess.subsMu.Unlock()
	}
	return s
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.cfg.Dial(dctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.addr, err)
	}
	c.lastActivity.Store(time.Now().UnixNano())

	return &session{
		conn:    conn,
		corr:    NewCorrelator(c.cfg.CommandTimeout, c.getLogger()),
		decoder: NewDecoder(),
		done:    newCloseOnce(),
		subs:    make(map[string]*MeterSubscription),
	}, nil
}

// install makes sess the active session and starts its goroutines. It
// returns false if Disconnect ran in the meantime.
func (c *Client) install(sess *session, stop *closeOnce) bool {
	c.mu.Lock()
	if stop.IsClosed() {
		c.mu.Unlock()
		return false
	}
	c.sess = sess
	sess.wg.Add(2)
	go c.readLoop(sess)
	go c.keepAliveLoop(sess)
	notify := c.setStateLocked(StateConnected)
	c.mu.Unlock()

	fire(notify)
	return true
}

// fail tears down sess after a fatal error and schedules a reconnect.
// Only the first failure of a session has any effect.
func (c *Client) fail(sess *session, cause error) {
	c.mu.Lock()
	if c.sess != sess {
		c.mu.Unlock()
		return
	}
	c.sess = nil
	notify := c.setStateLocked(StateError)

	stop := c.stop
	startReconnect := false
	if !stop.IsClosed() && c.reconnecting.CompareAndSwap(false, true) {
		c.wg.Add(1)
		startReconnect = true
	}
	c.mu.Unlock()

	c.errorsTotal.Add(1)
	c.logError("audio processor connection lost", cause, "addr", c.addr)
	sess.close(fmt.Errorf("%w: %w", ErrClosed, cause))
	fire(notify)

	if startReconnect {
		go c.reconnectLoop(stop)
	}
}

func (c *Client) reconnectLoop(stop *closeOnce) {
	defer c.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-stop.Done():
			c.reconnecting.Store(false)
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}

		c.transition(stop, StateConnecting)
		sess, err := c.dial(ctx)
		if err != nil {
			c.logWarn("reconnect attempt failed",
				"addr", c.addr,
				"attempt", attempt,
				"max_attempts", c.cfg.MaxReconnectAttempts,
				"error", err,
			)
			c.transition(stop, StateError)
			continue
		}

		c.reconnecting.Store(false)
		if !c.install(sess, stop) {
			sess.close(ErrClosed)
			return
		}
		c.reconnectsTotal.Add(1)
		c.logInfo("reconnected to audio processor", "addr", c.addr, "attempt", attempt)
		return
	}

	c.mu.Lock()
	c.reconnectErr = fmt.Errorf("%w: gave up after %d reconnect attempts", ErrNotConnected, c.cfg.MaxReconnectAttempts)
	c.reconnecting.Store(false)
	c.broadcastLocked()
	c.mu.Unlock()

	c.logError("audio processor reconnect exhausted", c.reconnectErr, "addr", c.addr)
}

// readySession returns the live session, waiting out a connect or
// reconnect in progress.
func (c *Client) readySession(ctx context.Context) (*session, error) {
	for {
		c.mu.Lock()
		if c.sess != nil && c.state == StateConnected {
			sess := c.sess
			c.mu.Unlock()
			return sess, nil
		}
		waiting := c.state == StateConnecting || c.reconnecting.Load()
		ch := c.stateCh
		rerr := c.reconnectErr
		c.mu.Unlock()

		if !waiting {
			if rerr != nil {
				return nil, rerr
			}
			return nil, ErrNotConnected
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for reconnect: %w", ErrNotConnected, ctx.Err())
		}
	}
}

// roundTrip sends req on sess and waits for the matching response.
// Consecutive timeouts and write failures feed the session's failure
// detection.
func (c *Client) roundTrip(ctx context.Context, sess *session, req Request) (Message, error) {
	c.requestsTotal.Add(1)

	msg, err := sess.corr.Submit(ctx, req.Method, req.Params.Param, func(id int64) error {
		req.ID = &id
		frame, err := EncodeRequest(req)
		if err != nil {
			return err
		}
		return sess.write(frame, c.cfg.CommandTimeout)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTimeout):
			c.timeoutsTotal.Add(1)
			if n := int(sess.missed.Add(1)); n >= c.cfg.MaxMissedKeepAlives {
				c.fail(sess, fmt.Errorf("%w: %d consecutive requests unanswered", ErrTimeout, n))
			}
		case errors.Is(err, ErrConnectionFailed):
			c.fail(sess, err)
		}
		return Message{}, err
	}

	sess.missed.Store(0)
	if msg.Error != nil {
		return msg, fmt.Errorf("%w: %s %s: %w", ErrCommandFailed, req.Method, req.Params.Param, msg.Error)
	}
	return msg, nil
}

func (c *Client) readLoop(sess *session) {
	defer sess.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := sess.conn.Read(buf)
		if n > 0 {
			c.lastActivity.Store(time.Now().UnixNano())
			frames, ferr := sess.decoder.Feed(buf[:n])
			for _, frame := range frames {
				c.dispatch(sess, frame)
			}
			if ferr != nil {
				c.fail(sess, ferr)
				return
			}
		}
		if err != nil {
			if sess.done.IsClosed() {
				return
			}
			c.fail(sess, fmt.Errorf("%w: read: %w", ErrConnectionFailed, err))
			return
		}
	}
}

func (c *Client) dispatch(sess *session, frame []byte) {
	msg, err := ParseMessage(frame)
	if err != nil {
		c.errorsTotal.Add(1)
		c.logWarn("discarding malformed frame", "error", err, "frame", string(frame))
		return
	}

	if msg.ID != nil {
		if sess.corr.Resolve(msg) {
			c.responsesTotal.Add(1)
		}
		return
	}

	if msg.Method != MethodUpdate {
		c.logDebug("ignoring notification", "method", msg.Method)
		return
	}

	v, err := DecodeValue(msg.Params)
	if err != nil || v.Param == "" {
		c.logWarn("discarding malformed update", "error", err)
		return
	}
	c.updatesTotal.Add(1)

	if sub := sess.subscription(v.Param); sub != nil {
		c.deliver(sub, sub.record(v))
	}

	c.callbackMu.RLock()
	fn := c.onUpdate
	c.callbackMu.RUnlock()
	if fn != nil {
		c.safeCall(func() { fn(v) })
	}
}

func (c *Client) keepAliveLoop(sess *session) {
	defer sess.wg.Done()

	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done.Done():
			return
		case <-ticker.C:
		}

		// Bounded by the correlator's command timeout, which is what counts
		// as a miss.
		_, err := c.roundTrip(context.Background(), sess, keepAliveRequest())

		if errors.Is(err, ErrTimeout) {
			c.keepAlivesMissed.Add(1)
			c.logWarn("keep-alive unanswered", "addr", c.addr, "missed", sess.missed.Load())
		}
	}
}

func (c *Client) pollLoop(sess *session, sub *MeterSubscription) {
	defer sess.wg.Done()

	ticker := time.NewTicker(sub.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done.Done():
			return
		case <-sub.done.Done():
			return
		case <-ticker.C:
		}

		msg, err := c.roundTrip(context.Background(), sess, Request{
			Method: MethodGet,
			Params: Params{Param: sub.param, Fmt: sub.format},
		})
		if err != nil {
			c.logDebug("meter poll failed", "param", sub.param, "error", err)
			continue
		}

		v, err := DecodeValue(msg.Result)
		if err != nil {
			c.logDebug("meter poll returned bad value", "param", sub.param, "error", err)
			continue
		}
		if v.Param == "" {
			v.Param = sub.param
		}
		if sub.done.IsClosed() {
			return
		}
		c.deliver(sub, sub.record(v))
	}
}

func (c *Client) deliver(sub *MeterSubscription, upd MeterUpdate) {
	if sub.callback == nil {
		return
	}
	c.safeCall(func() { sub.callback(upd) })
}

// safeCall runs a user callback, recovering from panics so a faulty
// handler cannot take down the read loop.
func (c *Client) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logError("callback panicked", fmt.Errorf("%v", r))
		}
	}()
	fn()
}

// transition changes state unless Disconnect has already run.
func (c *Client) transition(stop *closeOnce, s State) {
	c.mu.Lock()
	if stop != nil && stop.IsClosed() {
		c.mu.Unlock()
		return
	}
	notify := c.setStateLocked(s)
	c.mu.Unlock()
	fire(notify)
}

// setStateLocked must be called with c.mu held. The returned function
// fires the state callback and must be called after unlocking.
func (c *Client) setStateLocked(s State) func() {
	if c.state == s {
		return nil
	}
	c.state = s
	c.broadcastLocked()

	c.callbackMu.RLock()
	fn := c.onStateChange
	c.callbackMu.RUnlock()
	if fn == nil {
		return nil
	}
	return func() { c.safeCall(func() { fn(s) }) }
}

func (c *Client) broadcastLocked() {
	close(c.stateCh)
	c.stateCh = make(chan struct{})
}

func fire(fn func()) {
	if fn != nil {
		fn()
	}
}

func keepAliveRequest() Request {
	return Request{
		Method: MethodGet,
		Params: Params{Param: keepAliveParam, Fmt: FormatStr},
	}
}

func defaultFormat(param, format string) string {
	if format != "" {
		return format
	}
	if desc, err := LookupParameter(param); err == nil && desc.Kind == KindString {
		return FormatStr
	}
	return FormatVal
}

func (s *session) write(frame []byte, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.done.IsClosed() {
		return ErrClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", ErrConnectionFailed, err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnectionFailed, err)
	}
	return nil
}

// close ends the session: pending requests fail with cause and all
// subscriptions stop. It does not wait for goroutines.
func (s *session) close(cause error) {
	s.done.Close()
	_ = s.conn.Close()
	s.corr.FailAll(cause)

	s.subsMu.Lock()
	for p, sub := range s.subs {
		sub.stop()
		delete(s.subs, p)
	}
	s.subsMu.Unlock()
}

// addSubscription registers sub and reserves its poll goroutine in s.wg.
func (s *session) addSubscription(sub *MeterSubscription) bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.done.IsClosed() {
		return false
	}
	if old, ok := s.subs[sub.param]; ok {
		old.stop()
	}
	s.subs[sub.param] = sub
	s.wg.Add(1)
	return true
}

func (s *session) removeSubscription(param string) bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	sub, ok := s.subs[param]
	if !ok {
		return false
	}
	sub.stop()
	delete(s.subs, param)
	return true
}

func (s *session) subscription(param string) *MeterSubscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return s.subs[param]
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logDebug(msg string, kv ...any) {
	c.getLogger().Debug(msg, kv...)
}

func (c *Client) logInfo(msg string, kv ...any) {
	c.getLogger().Info(msg, kv...)
}

func (c *Client) logWarn(msg string, kv ...any) {
	c.getLogger().Warn(msg, kv...)
}

func (c *Client) logError(msg string, err error, kv ...any) {
	c.getLogger().Error(msg, append([]any{"error", err}, kv...)...)
}

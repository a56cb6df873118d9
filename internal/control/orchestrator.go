package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/sportsbar-av/internal/bridges/cec"
	"github.com/nerrad567/sportsbar-av/internal/bridges/ir"
	"github.com/nerrad567/sportsbar-av/internal/device"
)

// Router connects a matrix input to an output.
type Router interface {
	Route(ctx context.Context, input, output int) error
}

// CECSender sends a named CEC command to a logical address.
type CECSender interface {
	SendCommand(ctx context.Context, name string, target int) error
}

// IRSender transmits an IR command through the external IR service.
type IRSender interface {
	Send(ctx context.Context, req ir.Request) error
}

// Logger is satisfied by logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config wires the orchestrator to its transports. A nil Router or CEC
// disables the CEC path; a nil IR disables the IR path.
type Config struct {
	// CECInput is the matrix input the CEC adapter is attached to.
	CECInput int

	Router Router
	CEC    CECSender
	IR     IRSender
}

// Options tunes a single Control call.
type Options struct {
	// Method forces CEC or IR. Empty lets SelectMethod decide.
	Method Method

	// NoFallback disables the retry on the other path.
	NoFallback bool
}

// BatchOptions tunes ControlMultiple.
type BatchOptions struct {
	// Sequential finishes each TV (including any fallback) before the next
	// starts, with DelayBetween in between. The CEC bus has no per-device
	// isolation, so this is the only protection against overlapping
	// matrix routes.
	Sequential   bool
	DelayBetween time.Duration

	// Parallelism bounds concurrent TVs when not sequential. 0 is unbounded.
	Parallelism int

	Method Method
}

// Result is the outcome of one (TV, command) control attempt. It is never
// modified after Control returns.
type Result struct {
	ID           string        `json:"id"`
	DeviceID     string        `json:"device_id"`
	Command      string        `json:"command"`
	Success      bool          `json:"success"`
	Method       Method        `json:"method,omitempty"`
	Message      string        `json:"message"`
	Error        string        `json:"error,omitempty"`
	Err          error         `json:"-"`
	FallbackUsed bool          `json:"fallback_used"`
	Attempts     []Method      `json:"attempts,omitempty"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Stats holds orchestrator counters.
type Stats struct {
	Total     uint64
	Succeeded uint64
	Failed    uint64
	Fallbacks uint64
}

// Orchestrator decides how to control a TV and carries the attempt out,
// falling back from CEC to IR (or the reverse) when the first path fails.
//
// Control and ControlMultiple never return errors: every failure ends up
// in a Result so batches complete partially instead of aborting.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Orchestrator struct {
	cecInput int
	router   Router
	cec      CECSender
	ir       IRSender

	logger   Logger
	onResult func(Result)
	mu       sync.RWMutex

	// Substituted in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	total     atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	fallbacks atomic.Uint64
}

// NewOrchestrator creates an orchestrator for the given transports.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		cecInput: cfg.CECInput,
		router:   cfg.Router,
		cec:      cfg.CEC,
		ir:       cfg.IR,
		logger:   noopLogger{},
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// SetLogger sets the logger.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.mu.Lock()
	o.logger = logger
	o.mu.Unlock()
}

// SetOnResult registers a sink invoked with every Result.
func (o *Orchestrator) SetOnResult(fn func(Result)) {
	o.mu.Lock()
	o.onResult = fn
	o.mu.Unlock()
}

// Commands lists the logical command names Control accepts.
func Commands() []string {
	return cec.Commands()
}

// Control sends command to tv and reports what happened.
func (o *Orchestrator) Control(ctx context.Context, tv device.TV, command string, opts Options) (res Result) {
	start := o.now()
	res = Result{
		ID:        uuid.NewString(),
		DeviceID:  tv.ID,
		Command:   command,
		Timestamp: start,
	}

	defer func() {
		if r := recover(); r != nil {
			o.getLogger().Error("control panic recovered", "device", tv.ID, "command", command, "panic", r)
			res = failure(res, fmt.Errorf("%w: %v", ErrPanic, r), "internal error")
		}
		res.Duration = o.now().Sub(start)
		res.DurationMS = res.Duration.Milliseconds()
		o.finish(res)
	}()

	if !cec.IsCommand(command) {
		return failure(res, fmt.Errorf("%w: %q", ErrUnknownCommand, command), "unknown command")
	}

	profile := LookupProfile(tv.Brand)
	method, err := SelectMethod(&tv, profile, command, opts.Method)
	if err != nil {
		return failure(res, err, "no usable control method")
	}

	res.Attempts = append(res.Attempts, method)
	err = o.execute(ctx, &tv, profile, command, method)
	if err == nil {
		res.Success = true
		res.Method = method
		res.Message = fmt.Sprintf("%s sent via %s", command, method)
		return res
	}

	alt := other(method)
	if opts.NoFallback || errors.Is(err, ErrRoutingFailed) || !supports(&tv, alt) {
		res.Method = method
		return failure(res, err, fmt.Sprintf("%s via %s failed", command, method))
	}

	o.getLogger().Warn("control path failed, falling back",
		"device", tv.ID, "command", command, "method", method, "fallback", alt, "error", err)

	res.Method = MethodFallback
	res.FallbackUsed = true
	res.Attempts = append(res.Attempts, alt)
	if ferr := o.execute(ctx, &tv, profile, command, alt); ferr != nil {
		return failure(res,
			fmt.Errorf("%s: %w; fallback %s: %w", method, err, alt, ferr),
			fmt.Sprintf("%s failed via %s and %s", command, method, alt))
	}

	res.Success = true
	res.Message = fmt.Sprintf("%s sent via %s after %s failed", command, alt, method)
	return res
}

// ControlMultiple controls every TV and returns results in input order.
func (o *Orchestrator) ControlMultiple(ctx context.Context, tvs []device.TV, command string, opts BatchOptions) []Result {
	results := make([]Result, len(tvs))
	single := Options{Method: opts.Method}

	if opts.Sequential {
		for i := range tvs {
			if i > 0 {
				if err := o.sleep(ctx, opts.DelayBetween); err != nil {
					for j := i; j < len(tvs); j++ {
						results[j] = o.abandon(tvs[j], command, err)
					}
					return results
				}
			}
			results[i] = o.Control(ctx, tvs[i], command, single)
		}
		return results
	}

	g := newGroup(opts.Parallelism)
	for i := range tvs {
		g.Go(func() error {
			results[i] = o.Control(ctx, tvs[i], command, single)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
	return results
}

// Stats returns orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Total:     o.total.Load(),
		Succeeded: o.succeeded.Load(),
		Failed:    o.failed.Load(),
		Fallbacks: o.fallbacks.Load(),
	}
}

func (o *Orchestrator) execute(ctx context.Context, tv *device.TV, profile BrandProfile, command string, m Method) error {
	if m == MethodCEC {
		return o.viaCEC(ctx, tv, profile, command)
	}
	return o.viaIR(ctx, tv, command)
}

// viaCEC routes the adapter's input to the TV's output, waits for the
// brand's settle time, then sends the command.
func (o *Orchestrator) viaCEC(ctx context.Context, tv *device.TV, profile BrandProfile, command string) error {
	if o.router == nil || o.cec == nil {
		return fmt.Errorf("%w: CEC", ErrPathUnavailable)
	}

	if err := o.router.Route(ctx, o.cecInput, tv.Output); err != nil {
		if !errors.Is(err, ErrRoutingFailed) {
			err = fmt.Errorf("%w: %w", ErrRoutingFailed, err)
		}
		return err
	}

	if err := o.sleep(ctx, profile.DelayFor(command)); err != nil {
		return fmt.Errorf("waiting for %s settle time: %w", profile.Brand, err)
	}

	return o.cec.SendCommand(ctx, command, tv.CECAddress)
}

func (o *Orchestrator) viaIR(ctx context.Context, tv *device.TV, command string) error {
	if o.ir == nil {
		return fmt.Errorf("%w: IR", ErrPathUnavailable)
	}
	return o.ir.Send(ctx, ir.Request{DeviceID: tv.ID, Address: tv.IRAddress, Command: command})
}

// abandon produces the result for a TV a cancelled batch never reached.
func (o *Orchestrator) abandon(tv device.TV, command string, err error) Result {
	res := failure(Result{
		ID:        uuid.NewString(),
		DeviceID:  tv.ID,
		Command:   command,
		Timestamp: o.now(),
	}, err, "batch cancelled before this device")
	o.finish(res)
	return res
}

func (o *Orchestrator) finish(res Result) {
	o.total.Add(1)
	if res.Success {
		o.succeeded.Add(1)
	} else {
		o.failed.Add(1)
	}
	if res.FallbackUsed {
		o.fallbacks.Add(1)
	}

	logger := o.getLogger()
	if res.Success {
		logger.Info("tv control", "device", res.DeviceID, "command", res.Command,
			"method", res.Method, "fallback", res.FallbackUsed, "duration", res.Duration)
	} else {
		logger.Warn("tv control failed", "device", res.DeviceID, "command", res.Command,
			"method", res.Method, "fallback", res.FallbackUsed, "error", res.Error)
	}

	o.mu.RLock()
	sink := o.onResult
	o.mu.RUnlock()
	if sink != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("result sink panic recovered", "panic", r)
				}
			}()
			sink(res)
		}()
	}
}

func (o *Orchestrator) getLogger() Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.logger
}

func failure(res Result, err error, msg string) Result {
	res.Success = false
	res.Err = err
	res.Error = err.Error()
	res.Message = msg
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

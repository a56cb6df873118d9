package cec

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	defaultCommandTimeout = 10 * time.Second
	defaultScanCacheTTL   = 30 * time.Second

	// debugLevel makes cec-client print TRAFFIC lines (level 8 = traffic).
	debugLevel = 8

	maxLogicalAddress = 15
)

// Config holds gateway settings. Zero values take defaults.
type Config struct {
	// Device is the adapter port, e.g. /dev/ttyACM0. When empty the first
	// adapter reported by cec-client is used.
	Device         string
	CommandTimeout time.Duration
	ScanCacheTTL   time.Duration
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Gateway sends CEC commands through a USB adapter by way of cec-client.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The gateway does not serialise bus access; concurrent commands each
//     spawn their own cec-client. Callers that need ordering (batch TV
//     control) must issue commands sequentially.
type Gateway struct {
	transport Transport
	cfg       Config
	logger    Logger

	mu          sync.Mutex
	initialized bool
	adapters    []Adapter
	port        string
	scanCache   []Device
	scannedAt   time.Time

	now func() time.Time
}

// NewGateway creates a gateway. Initialize must succeed before commands run;
// operations call it implicitly when needed.
func NewGateway(transport Transport, cfg Config, logger Logger) *Gateway {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.ScanCacheTTL <= 0 {
		cfg.ScanCacheTTL = defaultScanCacheTTL
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Gateway{
		transport: transport,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Initialize probes for adapters. It is idempotent: once an adapter has
// been found later calls return the cached list without running cec-client.
func (g *Gateway) Initialize(ctx context.Context) ([]Adapter, error) {
	g.mu.Lock()
	if g.initialized {
		adapters := append([]Adapter(nil), g.adapters...)
		g.mu.Unlock()
		return adapters, nil
	}
	g.mu.Unlock()

	out, err := g.exec(ctx, []string{"-l"}, "")
	if err != nil {
		return nil, fmt.Errorf("%w: listing adapters: %w", ErrAdapterUnavailable, err)
	}

	adapters := parseAdapters(out)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no adapters found", ErrAdapterUnavailable)
	}

	port := adapters[0].Port
	if g.cfg.Device != "" {
		port = ""
		for _, a := range adapters {
			if a.Port == g.cfg.Device {
				port = a.Port
				break
			}
		}
		if port == "" {
			return nil, fmt.Errorf("%w: %s not present", ErrAdapterUnavailable, g.cfg.Device)
		}
	}

	g.mu.Lock()
	g.initialized = true
	g.adapters = adapters
	g.port = port
	g.mu.Unlock()

	g.logger.Info("cec adapter ready", "port", port, "adapters", len(adapters))
	return append([]Adapter(nil), adapters...), nil
}

// Shutdown forgets the adapter and cached scan. The next operation
// re-initialises.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initialized = false
	g.adapters = nil
	g.port = ""
	g.scanCache = nil
	g.scannedAt = time.Time{}
}

// Available reports whether an adapter has been found.
func (g *Gateway) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// Port returns the adapter port in use, or "" before Initialize.
func (g *Gateway) Port() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.port
}

// ScanDevices lists devices on the bus. Results are cached for
// ScanCacheTTL unless force is set.
func (g *Gateway) ScanDevices(ctx context.Context, force bool) ([]Device, error) {
	if !force {
		g.mu.Lock()
		if g.scanCache != nil && g.now().Sub(g.scannedAt) < g.cfg.ScanCacheTTL {
			devices := append([]Device(nil), g.scanCache...)
			g.mu.Unlock()
			return devices, nil
		}
		g.mu.Unlock()
	}

	out, err := g.run(ctx, "scan")
	if err != nil {
		return nil, err
	}
	devices := parseScan(out)

	g.mu.Lock()
	g.scanCache = devices
	g.scannedAt = g.now()
	g.mu.Unlock()

	g.logger.Debug("cec scan complete", "devices", len(devices))
	return append([]Device(nil), devices...), nil
}

// GetPowerStatus asks the device at logicalAddr for its power state
// ("on", "standby", "in transition from standby to on", ...).
func (g *Gateway) GetPowerStatus(ctx context.Context, logicalAddr int) (string, error) {
	if err := checkAddress(logicalAddr); err != nil {
		return "", err
	}

	out, err := g.run(ctx, "pow "+strconv.Itoa(logicalAddr))
	if err != nil {
		return "", err
	}
	status, ok := parsePowerStatus(out)
	if !ok {
		return "", fmt.Errorf("%w: no power status from device %d", ErrCommandFailed, logicalAddr)
	}
	return status, nil
}

// SendOpcode transmits a raw CEC frame to target.
func (g *Gateway) SendOpcode(ctx context.Context, opcode byte, operands []byte, target int) error {
	if err := checkAddress(target); err != nil {
		return err
	}
	return g.send(ctx, txLine(target, opcode, operands...))
}

// SendCommand performs a named command (power_on, volume_up, ...) on target.
func (g *Gateway) SendCommand(ctx context.Context, name string, target int) error {
	build, ok := commandLines[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	if err := checkAddress(target); err != nil {
		return err
	}

	for _, line := range build(target) {
		if err := g.send(ctx, line); err != nil {
			return fmt.Errorf("%s to %d: %w", name, target, err)
		}
	}
	g.logger.Debug("cec command sent", "command", name, "target", target)
	return nil
}

// send runs one cec-client line and checks the output for bus traffic.
func (g *Gateway) send(ctx context.Context, line string) error {
	out, err := g.run(ctx, line)
	if err != nil {
		return err
	}
	if !SendSucceeded(out) {
		return fmt.Errorf("%w: %q produced no bus traffic", ErrCommandFailed, line)
	}
	return nil
}

// run executes line in single-command mode against the adapter,
// initialising first if needed.
func (g *Gateway) run(ctx context.Context, line string) (string, error) {
	if _, err := g.Initialize(ctx); err != nil {
		return "", err
	}

	args := []string{"-s", "-d", strconv.Itoa(debugLevel)}
	if port := g.Port(); port != "" {
		args = append(args, port)
	}
	return g.exec(ctx, args, line)
}

func (g *Gateway) exec(ctx context.Context, args []string, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CommandTimeout)
	defer cancel()

	start := g.now()
	out, err := g.transport.Exec(ctx, args, input)
	if err != nil {
		g.logger.Warn("cec-client failed", "input", input, "error", err, "elapsed", g.now().Sub(start))
		return out, err
	}
	return out, nil
}

func checkAddress(addr int) error {
	if addr < 0 || addr > maxLogicalAddress {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}
	return nil
}

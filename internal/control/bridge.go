package control

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/sportsbar-av/internal/device"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/mqtt"
)

// Bridge defaults.
const (
	defaultMaxInFlight    = 8
	defaultCommandTimeout = 30 * time.Second
	defaultBatchTimeout   = 5 * time.Minute

	ackQoS = 1
)

// Broker is the subset of *mqtt.Client the bridge uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Devices looks TVs up by id. Satisfied by *device.Registry.
type Devices interface {
	GetTV(ctx context.Context, id string) (*device.TV, error)
	GetTVs(ctx context.Context, ids []string) ([]device.TV, error)
}

// AudioSetter writes an audio processor parameter. Satisfied by *atlas.Client.
type AudioSetter interface {
	Set(ctx context.Context, param string, value any, format string) error
}

// BridgeConfig wires the bridge. Router and Audio may be nil, in which
// case their commands are acked with not_configured.
type BridgeConfig struct {
	Broker       Broker
	Orchestrator *Orchestrator
	Devices      Devices
	Router       Router
	Audio        AudioSetter

	// Batch defaults applied when a BatchCommand leaves them unset.
	Batch BatchOptions

	// MaxInFlight bounds concurrently executing commands. Further
	// commands are rejected with a busy ack.
	MaxInFlight    int
	CommandTimeout time.Duration
	BatchTimeout   time.Duration
}

// Bridge translates MQTT command topics into orchestrator, matrix and
// audio calls and publishes an ack for each one.
//
// Each command runs on a bridge goroutine bounded by MaxInFlight;
// handleMessage itself never blocks on a device.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg    BridgeConfig
	topics mqtt.Topics

	group *errgroup.Group

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Broker == nil {
		return nil, fmt.Errorf("MQTT broker is required")
	}
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cfg:    cfg,
		group:  newGroup(cfg.MaxInFlight),
		ctx:    ctx,
		cancel: cancel,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

// Start subscribes to every command topic.
func (b *Bridge) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	topic := b.topics.AllCommands()
	if err := b.cfg.Broker.Subscribe(topic, ackQoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.getLogger().Info("control bridge started", "topic", topic, "max_in_flight", b.cfg.MaxInFlight)
	return nil
}

// Stop cancels in-flight commands and waits for them to ack.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()
		_ = b.group.Wait() //nolint:errcheck // workers never return errors
		b.getLogger().Info("control bridge stopped")
	})
}

// handleMessage dispatches on the command topic. It returns quickly; the
// work happens on a bridge goroutine.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	kind, target, ok := b.topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("%w: topic %s", ErrInvalidMessage, topic)
	}
	if b.ctx.Err() != nil {
		return nil
	}

	var run func(ctx context.Context) (ackTopic string, ack AckMessage)
	timeout := b.cfg.CommandTimeout

	switch {
	case kind == mqtt.KindTV && target == mqtt.BatchTarget:
		timeout = b.cfg.BatchTimeout
		run = func(ctx context.Context) (string, AckMessage) {
			return b.topics.Ack(mqtt.KindTV, mqtt.BatchTarget), b.handleBatch(ctx, payload)
		}
	case kind == mqtt.KindTV:
		run = func(ctx context.Context) (string, AckMessage) {
			return b.topics.Ack(mqtt.KindTV, target), b.handleTV(ctx, target, payload)
		}
	case kind == mqtt.KindMatrix && target == "route":
		run = func(ctx context.Context) (string, AckMessage) {
			return b.topics.Ack(mqtt.KindMatrix, target), b.handleRoute(ctx, payload)
		}
	case kind == mqtt.KindAudio && target == "set":
		run = func(ctx context.Context) (string, AckMessage) {
			return b.topics.Ack(mqtt.KindAudio, target), b.handleAudioSet(ctx, payload)
		}
	default:
		return fmt.Errorf("%w: no handler for %s/%s", ErrInvalidMessage, kind, target)
	}

	started := b.group.TryGo(func() error {
		ctx, cancel := context.WithTimeout(b.ctx, timeout)
		defer cancel()
		ackTopic, ack := run(ctx)
		b.publishAck(ackTopic, ack)
		return nil
	})
	if !started {
		b.publishAck(b.topics.Ack(kind, target), NewAckError(commandID(payload), ErrBusy))
		return ErrBusy
	}
	return nil
}

func (b *Bridge) handleTV(ctx context.Context, id string, payload []byte) AckMessage {
	var cmd TVCommand
	if err := decode(payload, &cmd); err != nil {
		return NewAckError("", err)
	}
	if cmd.Command == "" {
		return NewAckError(cmd.ID, fmt.Errorf("%w: command is required", ErrInvalidMessage))
	}
	method, err := ParseMethod(cmd.Method)
	if err != nil {
		return NewAckError(cmd.ID, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
	}

	tv, err := b.cfg.Devices.GetTV(ctx, id)
	if err != nil {
		return NewAckError(cmd.ID, err)
	}

	b.getLogger().Debug("tv command received", "command_id", cmd.ID, "device", id, "command", cmd.Command)
	res := b.cfg.Orchestrator.Control(ctx, *tv, cmd.Command, Options{Method: method})
	return NewResultAck(cmd.ID, res)
}

func (b *Bridge) handleBatch(ctx context.Context, payload []byte) AckMessage {
	var cmd BatchCommand
	if err := decode(payload, &cmd); err != nil {
		return NewAckError("", err)
	}
	if cmd.Command == "" || len(cmd.Devices) == 0 {
		return NewAckError(cmd.ID, fmt.Errorf("%w: command and devices are required", ErrInvalidMessage))
	}
	method, err := ParseMethod(cmd.Method)
	if err != nil {
		return NewAckError(cmd.ID, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
	}

	tvs, err := b.cfg.Devices.GetTVs(ctx, cmd.Devices)
	if err != nil {
		return NewAckError(cmd.ID, err)
	}

	opts := b.cfg.Batch
	opts.Method = method
	if cmd.Sequential != nil {
		opts.Sequential = *cmd.Sequential
	}
	if cmd.DelayMS != nil {
		opts.DelayBetween = time.Duration(*cmd.DelayMS) * time.Millisecond
	}
	if cmd.Parallelism > 0 {
		opts.Parallelism = cmd.Parallelism
	}

	b.getLogger().Info("batch command received",
		"command_id", cmd.ID, "devices", len(tvs), "command", cmd.Command, "sequential", opts.Sequential)
	return NewBatchAck(cmd.ID, b.cfg.Orchestrator.ControlMultiple(ctx, tvs, cmd.Command, opts))
}

func (b *Bridge) handleRoute(ctx context.Context, payload []byte) AckMessage {
	var cmd RouteCommand
	if err := decode(payload, &cmd); err != nil {
		return NewAckError("", err)
	}
	if cmd.Input < 1 || cmd.Output < 1 {
		return NewAckError(cmd.ID, fmt.Errorf("%w: input and output must be >= 1", ErrInvalidMessage))
	}
	if b.cfg.Router == nil {
		return NewAckError(cmd.ID, fmt.Errorf("%w: matrix", ErrNotConfigured))
	}
	if err := b.cfg.Router.Route(ctx, cmd.Input, cmd.Output); err != nil {
		return NewAckError(cmd.ID, err)
	}
	return NewAckOK(cmd.ID)
}

func (b *Bridge) handleAudioSet(ctx context.Context, payload []byte) AckMessage {
	var cmd AudioSetCommand
	if err := decode(payload, &cmd); err != nil {
		return NewAckError("", err)
	}
	if cmd.Param == "" || cmd.Value == nil {
		return NewAckError(cmd.ID, fmt.Errorf("%w: param and value are required", ErrInvalidMessage))
	}
	if b.cfg.Audio == nil {
		return NewAckError(cmd.ID, fmt.Errorf("%w: audio", ErrNotConfigured))
	}
	if err := b.cfg.Audio.Set(ctx, cmd.Param, cmd.Value, cmd.Format); err != nil {
		return NewAckError(cmd.ID, err)
	}
	return NewAckOK(cmd.ID)
}

func (b *Bridge) publishAck(topic string, ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.getLogger().Error("failed to marshal ack", "topic", topic, "error", err)
		return
	}
	if err := b.cfg.Broker.Publish(topic, payload, ackQoS, false); err != nil {
		b.getLogger().Warn("failed to publish ack", "topic", topic, "error", err)
	}
	if ack.Status == AckFailed {
		b.getLogger().Warn("command failed", "topic", topic, "command_id", ack.CommandID,
			"code", ack.Code, "error", ack.Error)
	}
}

// commandID extracts the id field from a payload for acks sent before the
// payload is fully decoded.
func commandID(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &probe) //nolint:errcheck // best effort
	return probe.ID
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

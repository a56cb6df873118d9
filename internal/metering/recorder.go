// Package metering fans audio processor meter readings out to MQTT state
// topics and InfluxDB.
package metering

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sportsbar-av/internal/bridges/atlas"
	"github.com/nerrad567/sportsbar-av/internal/infrastructure/mqtt"
)

// bridgeName tags audio processor health on MQTT and in InfluxDB.
const bridgeName = "audio"

// Meter is one parameter to poll.
type Meter struct {
	Param    string
	Interval time.Duration
}

// Source starts meter subscriptions. Satisfied by *atlas.Client.
type Source interface {
	Subscribe(param string, interval time.Duration, cb func(atlas.MeterUpdate)) (*atlas.MeterSubscription, error)
}

// Publisher publishes retained JSON state. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Points writes time-series points. Satisfied by *influxdb.Client.
type Points interface {
	WriteMeter(param string, value float64, at time.Time)
	WriteBridgeState(bridge, state string, at time.Time)
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

// Config wires a Recorder. Publisher and Points may be nil.
type Config struct {
	Meters    []Meter
	Source    Source
	Publisher Publisher
	Points    Points
}

// StateMessage is the retained payload on sportsbar/state/audio/{param}.
type StateMessage struct {
	Param string    `json:"param"`
	Value any       `json:"value"`
	Pct   *float64  `json:"pct,omitempty"`
	At    time.Time `json:"at"`
}

// HealthMessage is the retained payload on sportsbar/health/audio.
type HealthMessage struct {
	State  string    `json:"state"`
	Meters int       `json:"meters"`
	At     time.Time `json:"at"`
}

// Stats holds recorder counters.
type Stats struct {
	Readings  uint64
	Published uint64
	Errors    uint64
}

// Recorder subscribes the configured meters every time the audio
// processor connection comes up. Subscriptions die with the connection,
// so HandleStateChange must be registered as the client's state callback.
//
// Only changed readings are published to MQTT; every numeric reading is
// written to InfluxDB.
type Recorder struct {
	cfg    Config
	topics mqtt.Topics

	mu   sync.Mutex
	subs map[string]*atlas.MeterSubscription

	now func() time.Time

	readings  atomic.Uint64
	published atomic.Uint64
	errors    atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRecorder creates a recorder.
func NewRecorder(cfg Config) *Recorder {
	return &Recorder{
		cfg:    cfg,
		subs:   make(map[string]*atlas.MeterSubscription),
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (r *Recorder) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// HandleStateChange reacts to audio processor connection changes.
func (r *Recorder) HandleStateChange(state atlas.State) {
	at := r.now()
	if state == atlas.StateConnected {
		r.subscribeAll()
	} else if state == atlas.StateDisconnected || state == atlas.StateError {
		r.mu.Lock()
		clear(r.subs)
		r.mu.Unlock()
	}

	if r.cfg.Points != nil {
		r.cfg.Points.WriteBridgeState(bridgeName, state.String(), at)
	}
	r.publish(r.topics.BridgeHealth(bridgeName), HealthMessage{
		State:  state.String(),
		Meters: r.Active(),
		At:     at.UTC(),
	})
}

// Active returns the number of meters currently subscribed.
func (r *Recorder) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Stats returns recorder counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Readings:  r.readings.Load(),
		Published: r.published.Load(),
		Errors:    r.errors.Load(),
	}
}

func (r *Recorder) subscribeAll() {
	logger := r.getLogger()
	for _, m := range r.cfg.Meters {
		sub, err := r.cfg.Source.Subscribe(m.Param, m.Interval, r.handleUpdate)
		if err != nil {
			r.errors.Add(1)
			logger.Warn("meter subscription failed", "param", m.Param, "error", err)
			continue
		}
		r.mu.Lock()
		r.subs[m.Param] = sub
		r.mu.Unlock()
	}
	logger.Info("meters subscribed", "count", r.Active(), "configured", len(r.cfg.Meters))
}

func (r *Recorder) handleUpdate(upd atlas.MeterUpdate) {
	r.readings.Add(1)

	if n, ok := upd.Value.Number(); ok && r.cfg.Points != nil {
		r.cfg.Points.WriteMeter(upd.Param, n, upd.At)
	}
	if !upd.Changed {
		return
	}

	msg := StateMessage{Param: upd.Param, Pct: upd.Value.Pct, At: upd.At.UTC()}
	if n, ok := upd.Value.Number(); ok {
		msg.Value = n
	} else {
		msg.Value = upd.Value.String()
	}
	if r.publish(r.topics.AudioState(upd.Param), msg) {
		r.published.Add(1)
	}
}

func (r *Recorder) publish(topic string, v any) bool {
	if r.cfg.Publisher == nil {
		return false
	}
	if err := r.cfg.Publisher.PublishJSON(topic, v, true); err != nil {
		r.errors.Add(1)
		r.getLogger().Warn("meter publish failed", "topic", topic, "error", fmt.Errorf("publishing: %w", err))
		return false
	}
	return true
}

func (r *Recorder) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

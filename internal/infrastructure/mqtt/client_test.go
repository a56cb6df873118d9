package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sportsbar-av/internal/infrastructure/config"
)

type fakeToken struct {
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                     { return !t.timedOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakePaho records calls; methods the client never uses are left to the
// embedded nil interface.
type fakePaho struct {
	pahomqtt.Client

	mu           sync.Mutex
	connected    bool
	published    []published
	handlers     map[string]pahomqtt.MessageHandler
	subscribeErr error
	disconnected bool
}

func newFakePaho() *fakePaho {
	return &fakePaho{connected: true, handlers: make(map[string]pahomqtt.MessageHandler)}
}

func (f *fakePaho) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return &fakeToken{}
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return &fakeToken{err: f.subscribeErr}
	}
	f.handlers[topic] = cb
	return &fakeToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range topics {
		delete(f.handlers, t)
	}
	return &fakeToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakePaho) deliver(filter, topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers[filter]
	f.mu.Unlock()
	h(f, fakeMessage{topic: topic, payload: payload})
}

func (f *fakePaho) lastPublished() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.add(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add(msg) }
func (l *recordingLogger) add(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: "sportsbar-test"},
		QoS:    1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func connectedClient(t *testing.T) (*Client, *fakePaho) {
	t.Helper()
	fake := newFakePaho()
	c := newClient(fake, testConfig())
	c.connected.Store(true)
	return c, fake
}

func TestPublish(t *testing.T) {
	c, fake := connectedClient(t)

	if err := c.Publish("sportsbar/ack/tv/a", []byte(`{}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got := fake.lastPublished()
	if got.topic != "sportsbar/ack/tv/a" || got.qos != 1 || got.retained {
		t.Errorf("published %+v", got)
	}
}

func TestPublish_Validation(t *testing.T) {
	c, _ := connectedClient(t)

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		wantErr error
	}{
		{name: "empty topic", topic: "", qos: 1, wantErr: ErrInvalidTopic},
		{name: "wildcard topic", topic: "sportsbar/command/#", qos: 1, wantErr: ErrInvalidTopic},
		{name: "qos 3", topic: "t", qos: 3, wantErr: ErrInvalidQoS},
		{name: "oversize payload", topic: "t", qos: 0, payload: make([]byte, maxPayloadSize+1), wantErr: ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_Disconnected(t *testing.T) {
	c := newClient(newFakePaho(), testConfig())
	if err := c.Publish("t", nil, 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishJSON(t *testing.T) {
	c, fake := connectedClient(t)

	if err := c.PublishJSON("sportsbar/state/audio/ZoneMeter_0", map[string]float64{"value": -12.5}, true); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	got := fake.lastPublished()
	if string(got.payload) != `{"value":-12.5}` || !got.retained || got.qos != 1 {
		t.Errorf("published %+v (%s)", got, got.payload)
	}

	if err := c.PublishJSON("t", func() {}, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(func) error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_DeliversAndTracks(t *testing.T) {
	c, fake := connectedClient(t)

	var got []string
	err := c.Subscribe(Topics{}.AllCommands(), 1, func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription(Topics{}.AllCommands()) || c.SubscriptionCount() != 1 {
		t.Error("subscription not tracked")
	}

	fake.deliver(Topics{}.AllCommands(), "sportsbar/command/tv/a", []byte("x"))
	if len(got) != 1 || got[0] != "sportsbar/command/tv/a=x" {
		t.Errorf("handler got %v", got)
	}

	if err := c.Unsubscribe(Topics{}.AllCommands()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("subscription still tracked after Unsubscribe")
	}
}

func TestSubscribe_Failure(t *testing.T) {
	c, fake := connectedClient(t)
	fake.subscribeErr = errors.New("not authorised")

	err := c.Subscribe("sportsbar/#", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscription still tracked")
	}

	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v", err)
	}
}

func TestWrapHandler_RecoversPanicAndLogsErrors(t *testing.T) {
	c, fake := connectedClient(t)
	logger := &recordingLogger{}
	c.SetLogger(logger)

	_ = c.Subscribe("panic", 0, func(string, []byte) error { panic("boom") })
	_ = c.Subscribe("fail", 0, func(string, []byte) error { return errors.New("bad payload") })

	fake.deliver("panic", "panic", nil)
	fake.deliver("fail", "fail", nil)

	if len(logger.msgs) != 2 ||
		!strings.Contains(logger.msgs[0], "panic") ||
		!strings.Contains(logger.msgs[1], "error") {
		t.Errorf("logged %v", logger.msgs)
	}
}

func TestHandleConnect_RestoresAndAnnounces(t *testing.T) {
	c, fake := connectedClient(t)
	_ = c.Subscribe("a", 1, func(string, []byte) error { return nil })
	fake.handlers = make(map[string]pahomqtt.MessageHandler)

	called := make(chan struct{}, 1)
	c.SetOnConnect(func() { called <- struct{}{} })
	c.handleConnect()

	if _, ok := fake.handlers["a"]; !ok {
		t.Error("subscription not restored on reconnect")
	}
	status := fake.lastPublished()
	statusTopic := Topics{}.SystemStatus()
	if status.topic != statusTopic || !status.retained || !strings.Contains(string(status.payload), `"online"`) {
		t.Errorf("status publish = %+v", status)
	}
	select {
	case <-called:
	default:
		t.Error("OnConnect callback not invoked")
	}
}

func TestHandleDisconnect(t *testing.T) {
	c, _ := connectedClient(t)
	var gotErr error
	c.SetOnDisconnect(func(err error) { gotErr = err })

	c.handleDisconnect(errors.New("EOF"))
	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
	if gotErr == nil || gotErr.Error() != "EOF" {
		t.Errorf("OnDisconnect got %v", gotErr)
	}
}

func TestClose(t *testing.T) {
	c, fake := connectedClient(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fake.disconnected || c.IsConnected() {
		t.Error("Close() did not disconnect")
	}
	if !strings.Contains(string(fake.lastPublished().payload), "graceful_shutdown") {
		t.Errorf("offline status = %s", fake.lastPublished().payload)
	}

	if err := (&Client{}).Close(); err != nil {
		t.Errorf("Close() on zero client = %v", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port and waits for paho to give up")
	}
	cfg := testConfig()
	cfg.Broker.Port = 1
	cfg.Reconnect.InitialDelay = 0
	opts := buildClientOptions(cfg)
	opts.SetConnectRetry(false)
	token := pahomqtt.NewClient(opts).Connect()
	token.WaitTimeout(defaultConnectTimeout)
	if token.Error() == nil {
		t.Error("connect to closed port succeeded")
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}
	tests := []struct {
		got  string
		want string
	}{
		{topics.Command(KindTV, "bar-left"), "sportsbar/command/tv/bar-left"},
		{topics.Command(KindTV, BatchTarget), "sportsbar/command/tv/_batch"},
		{topics.Ack(KindMatrix, "route"), "sportsbar/ack/matrix/route"},
		{topics.AudioState("ZoneMeter_0"), "sportsbar/state/audio/ZoneMeter_0"},
		{topics.BridgeHealth("cec"), "sportsbar/health/cec"},
		{topics.SystemStatus(), "sportsbar/system/status"},
		{topics.AllCommands(), "sportsbar/command/+/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTopics_ParseCommand(t *testing.T) {
	tests := []struct {
		topic      string
		wantKind   string
		wantTarget string
		wantOK     bool
	}{
		{"sportsbar/command/tv/bar-left", "tv", "bar-left", true},
		{"sportsbar/command/audio/set", "audio", "set", true},
		{"sportsbar/command/tv", "", "", false},
		{"sportsbar/command/tv/a/b", "", "", false},
		{"sportsbar/ack/tv/a", "", "", false},
		{"other/command/tv/a", "", "", false},
	}
	for _, tt := range tests {
		kind, target, ok := Topics{}.ParseCommand(tt.topic)
		if kind != tt.wantKind || target != tt.wantTarget || ok != tt.wantOK {
			t.Errorf("ParseCommand(%q) = %q, %q, %v", tt.topic, kind, target, ok)
		}
	}
}

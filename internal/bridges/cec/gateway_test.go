package cec

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pilebones/go-udev/netlink"
)

const adapterListing = `Found devices: 1

device:              1
com port:            /dev/ttyACM0
vendor id:           2548
product id:          1002
firmware version:    12
firmware build date: Fri Dec 14 13:07:29 2018 +0000
type:                Pulse-Eight USB-CEC Adapter
`

const scanOutput = `opening a connection to the CEC adapter...
requesting CEC bus information ...
CEC bus information
===================
device #0: TV
address:       0.0.0.0
active source: no
vendor:        Samsung
osd string:    TV
CEC version:   1.4
power status:  standby
language:      eng


device #1: Recorder 1
address:       3.0.0.0
active source: yes
vendor:        Pulse Eight
osd string:    CECTester
CEC version:   1.4
power status:  on
language:      eng

currently active source: Recorder 1 (1)
`

const trafficOutput = `opening a connection to the CEC adapter...
TRAFFIC: [          421]	>> 10:04
`

// fakeTransport scripts cec-client. Responses are keyed by stdin line,
// with "-l" for the adapter listing.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []fakeCall
	delay     time.Duration
}

type fakeCall struct {
	args  []string
	input string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[string]string{"-l": adapterListing},
		errs:      map[string]error{},
	}
}

func (f *fakeTransport) Exec(ctx context.Context, args []string, input string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{args: args, input: input})
	key := input
	if len(args) == 1 && args[0] == "-l" {
		key = "-l"
	}
	out, ok := f.responses[key]
	err := f.errs[key]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ErrTimeout
		}
	}
	if err != nil {
		return out, err
	}
	if !ok {
		return "opening a connection to the CEC adapter...\n", nil
	}
	return out, nil
}

func (f *fakeTransport) set(key, out string) {
	f.mu.Lock()
	f.responses[key] = out
	f.mu.Unlock()
}

func (f *fakeTransport) inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.input)
	}
	return out
}

func (f *fakeTransport) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.input == key || (key == "-l" && len(c.args) == 1 && c.args[0] == "-l") {
			n++
		}
	}
	return n
}

func TestGateway_InitializeIdempotent(t *testing.T) {
	tr := newFakeTransport()
	g := NewGateway(tr, Config{}, nil)

	adapters, err := g.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if len(adapters) != 1 || adapters[0].Port != "/dev/ttyACM0" || adapters[0].Type != "Pulse-Eight USB-CEC Adapter" {
		t.Errorf("adapters = %+v", adapters)
	}

	if _, err := g.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if n := tr.count("-l"); n != 1 {
		t.Errorf("adapter listing ran %d times, want 1", n)
	}
	if !g.Available() || g.Port() != "/dev/ttyACM0" {
		t.Errorf("Available() = %v, Port() = %q", g.Available(), g.Port())
	}

	g.Shutdown()
	if g.Available() {
		t.Error("Available() true after Shutdown")
	}
}

func TestGateway_InitializeNoAdapter(t *testing.T) {
	tests := []struct {
		name   string
		out    string
		device string
	}{
		{name: "none found", out: "Found devices: NONE\n"},
		{name: "configured port missing", out: adapterListing, device: "/dev/ttyACM3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newFakeTransport()
			tr.set("-l", tt.out)
			g := NewGateway(tr, Config{Device: tt.device}, nil)

			_, err := g.Initialize(context.Background())
			if !errors.Is(err, ErrAdapterUnavailable) {
				t.Errorf("Initialize() error = %v, want ErrAdapterUnavailable", err)
			}
			if g.Available() {
				t.Error("Available() true without adapter")
			}

			// Commands fail the same way.
			if err := g.SendCommand(context.Background(), "power_on", 0); !errors.Is(err, ErrAdapterUnavailable) {
				t.Errorf("SendCommand() error = %v, want ErrAdapterUnavailable", err)
			}
		})
	}
}

func TestGateway_SendCommand(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		target    int
		wantLines []string
	}{
		{name: "power on", command: "power_on", target: 0, wantLines: []string{"on 0"}},
		{name: "power off", command: "power_off", target: 0, wantLines: []string{"standby 0"}},
		{name: "volume up", command: "volume_up", target: 0, wantLines: []string{"tx 10:44:41", "tx 10:45"}},
		{name: "mute audio system", command: "mute", target: 5, wantLines: []string{"tx 15:44:43", "tx 15:45"}},
		{name: "active source", command: "active_source", target: 0, wantLines: []string{"as"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newFakeTransport()
			for _, line := range tt.wantLines {
				tr.set(line, trafficOutput)
			}
			g := NewGateway(tr, Config{}, nil)

			if err := g.SendCommand(context.Background(), tt.command, tt.target); err != nil {
				t.Fatalf("SendCommand() error = %v", err)
			}

			got := tr.inputs()[1:] // skip adapter listing
			if strings.Join(got, "|") != strings.Join(tt.wantLines, "|") {
				t.Errorf("cec-client inputs = %q, want %q", got, tt.wantLines)
			}
		})
	}
}

func TestGateway_SendCommandArgs(t *testing.T) {
	tr := newFakeTransport()
	tr.set("on 0", trafficOutput)
	g := NewGateway(tr, Config{}, nil)

	if err := g.SendCommand(context.Background(), "power_on", 0); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	tr.mu.Lock()
	args := tr.calls[len(tr.calls)-1].args
	tr.mu.Unlock()
	if strings.Join(args, " ") != "-s -d 8 /dev/ttyACM0" {
		t.Errorf("args = %q", args)
	}
}

func TestGateway_SendCommandNoTraffic(t *testing.T) {
	tr := newFakeTransport()
	tr.set("on 0", "opening a connection to the CEC adapter...\nERROR: could not transmit\n")
	g := NewGateway(tr, Config{}, nil)

	err := g.SendCommand(context.Background(), "power_on", 0)
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("SendCommand() error = %v, want ErrCommandFailed", err)
	}
}

func TestGateway_SendCommandErrors(t *testing.T) {
	g := NewGateway(newFakeTransport(), Config{}, nil)

	if err := g.SendCommand(context.Background(), "warp_speed", 0); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command error = %v, want ErrUnknownCommand", err)
	}
	if err := g.SendCommand(context.Background(), "power_on", 16); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("bad address error = %v, want ErrInvalidAddress", err)
	}
}

func TestGateway_SendCommandTimeout(t *testing.T) {
	tr := newFakeTransport()
	g := NewGateway(tr, Config{CommandTimeout: 20 * time.Millisecond}, nil)
	if _, err := g.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	tr.mu.Lock()
	tr.delay = time.Second
	tr.mu.Unlock()

	if err := g.SendCommand(context.Background(), "power_on", 0); !errors.Is(err, ErrTimeout) {
		t.Errorf("SendCommand() error = %v, want ErrTimeout", err)
	}
}

func TestGateway_SendOpcode(t *testing.T) {
	tr := newFakeTransport()
	tr.set("tx 10:8F", trafficOutput)
	g := NewGateway(tr, Config{}, nil)

	if err := g.SendOpcode(context.Background(), OpcodeGivePowerStatus, nil, 0); err != nil {
		t.Fatalf("SendOpcode() error = %v", err)
	}
}

func TestGateway_ScanDevicesCaches(t *testing.T) {
	tr := newFakeTransport()
	tr.set("scan", scanOutput)
	g := NewGateway(tr, Config{ScanCacheTTL: time.Minute}, nil)

	now := time.Now()
	g.now = func() time.Time { return now }

	devices, err := g.ScanDevices(context.Background(), false)
	if err != nil {
		t.Fatalf("ScanDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %+v, want 2", devices)
	}
	tv := devices[0]
	if tv.LogicalAddress != 0 || tv.Type != "TV" || tv.Vendor != "Samsung" || tv.PowerStatus != "standby" || tv.PhysicalAddress != "0.0.0.0" {
		t.Errorf("tv = %+v", tv)
	}
	if !devices[1].ActiveSource || devices[1].OSDName != "CECTester" {
		t.Errorf("recorder = %+v", devices[1])
	}

	if _, err := g.ScanDevices(context.Background(), false); err != nil {
		t.Fatalf("cached ScanDevices() error = %v", err)
	}
	if n := tr.count("scan"); n != 1 {
		t.Errorf("scan ran %d times within TTL, want 1", n)
	}

	if _, err := g.ScanDevices(context.Background(), true); err != nil {
		t.Fatalf("forced ScanDevices() error = %v", err)
	}
	if n := tr.count("scan"); n != 2 {
		t.Errorf("scan ran %d times after force, want 2", n)
	}

	now = now.Add(2 * time.Minute)
	if _, err := g.ScanDevices(context.Background(), false); err != nil {
		t.Fatalf("expired ScanDevices() error = %v", err)
	}
	if n := tr.count("scan"); n != 3 {
		t.Errorf("scan ran %d times after expiry, want 3", n)
	}
}

func TestGateway_GetPowerStatus(t *testing.T) {
	tr := newFakeTransport()
	tr.set("pow 0", "opening a connection to the CEC adapter...\npower status: on\n")
	g := NewGateway(tr, Config{}, nil)

	status, err := g.GetPowerStatus(context.Background(), 0)
	if err != nil {
		t.Fatalf("GetPowerStatus() error = %v", err)
	}
	if status != "on" {
		t.Errorf("status = %q, want on", status)
	}

	if _, err := g.GetPowerStatus(context.Background(), 4); !errors.Is(err, ErrCommandFailed) {
		t.Errorf("GetPowerStatus(4) error = %v, want ErrCommandFailed", err)
	}
}

func TestSendSucceeded(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{trafficOutput, true},
		{"power status changed from 'standby' to 'on'", true},
		{"Power Status Changed", true},
		{"opening a connection to the CEC adapter...", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := SendSucceeded(tt.output); got != tt.want {
			t.Errorf("SendSucceeded(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestCommands(t *testing.T) {
	names := Commands()
	if len(names) != len(commandLines) {
		t.Fatalf("Commands() = %v", names)
	}
	for _, n := range names {
		if !IsCommand(n) {
			t.Errorf("IsCommand(%q) = false", n)
		}
	}
	if IsCommand("input_hdmi9") {
		t.Error("IsCommand(input_hdmi9) = true")
	}
}

func TestHotplugMonitor(t *testing.T) {
	if m := NewHotplugMonitor(nil, "/dev/ttyACM0", nil); m != nil {
		t.Error("expected nil monitor without gateway")
	}

	var nilMonitor *HotplugMonitor
	nilMonitor.Stop()
	if nilMonitor.Running() {
		t.Error("nil monitor reports running")
	}

	tr := newFakeTransport()
	g := NewGateway(tr, Config{}, nil)
	m := NewHotplugMonitor(g, "/dev/ttyACM0", nil)

	matcher := m.buildMatcher()
	add := netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "tty", "DEVNAME": "ttyACM0"}}
	if !matcher.Evaluate(add) {
		t.Error("matcher rejected tty add event")
	}
	if matcher.Evaluate(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}) {
		t.Error("matcher accepted block event")
	}

	m.handleEvent(context.Background(), add)
	if !g.Available() {
		t.Fatal("gateway not initialised after add event")
	}

	// Events for other ttys are ignored.
	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVNAME": "/dev/ttyUSB0"}})
	if !g.Available() {
		t.Error("unrelated remove event shut the gateway down")
	}

	m.handleEvent(context.Background(), netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/tty/ttyACM0"}})
	if g.Available() {
		t.Error("gateway still available after remove event")
	}
}

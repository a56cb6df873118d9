package cec

import (
	"context"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"
)

// HotplugMonitor watches udev for the adapter's tty node. When the node
// appears the gateway is re-initialised; when it disappears the gateway
// is shut down so commands fail fast with ErrAdapterUnavailable instead
// of waiting on a missing device.
type HotplugMonitor struct {
	gateway *Gateway
	device  string
	logger  Logger

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewHotplugMonitor returns nil when device is empty; all methods are
// safe on a nil monitor.
func NewHotplugMonitor(gateway *Gateway, device string, logger Logger) *HotplugMonitor {
	device = strings.TrimSpace(device)
	if gateway == nil || device == "" {
		return nil
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &HotplugMonitor{gateway: gateway, device: device, logger: logger}
}

// Start connects to the udev netlink socket. Failure to connect is logged
// and not fatal: the adapter then only recovers on the next command.
func (m *HotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("cec hotplug monitor unavailable", "error", err)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("cec hotplug monitor started", "device", m.device)
	return nil
}

// Stop closes the netlink socket.
func (m *HotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.quit)
	m.quit = nil
	_ = m.conn.Close()
	m.conn = nil
	m.running = false
}

// Running reports whether the monitor is active.
func (m *HotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *HotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case ev := <-queue:
			m.handleEvent(ctx, ev)
		case err := <-errs:
			m.logger.Warn("cec hotplug monitor error", "error", err)
		}
	}
}

// buildMatcher matches tty add/remove events.
func (m *HotplugMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "tty",
		},
	})
	return rules
}

func (m *HotplugMonitor) handleEvent(ctx context.Context, ev netlink.UEvent) {
	if deviceName(ev) != m.device {
		return
	}

	switch ev.Action {
	case netlink.ADD:
		m.gateway.Shutdown()
		if _, err := m.gateway.Initialize(ctx); err != nil {
			m.logger.Warn("cec adapter attached but not usable", "device", m.device, "error", err)
			return
		}
		m.logger.Info("cec adapter attached", "device", m.device)
	case netlink.REMOVE:
		m.gateway.Shutdown()
		m.logger.Warn("cec adapter removed", "device", m.device)
	}
}

func deviceName(ev netlink.UEvent) string {
	if name := ev.Env["DEVNAME"]; name != "" {
		if !strings.HasPrefix(name, "/dev/") {
			name = "/dev/" + name
		}
		return name
	}
	devpath := ev.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	return "/dev/" + devpath[strings.LastIndex(devpath, "/")+1:]
}

package devicemon

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"scancart/internal/logging"
)

// Handler is called when the watched camera appears or disappears.
type Handler func(device string, present bool)

// Monitor watches udev netlink events for the configured video4linux device
// and tracks whether it is currently plugged in.
type Monitor struct {
	device  string
	logger  *slog.Logger
	handler Handler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
	present bool
}

// New returns a monitor for device, or nil when device is empty. All methods
// are safe on a nil Monitor.
func New(device string, logger *slog.Logger, handler Handler) *Monitor {
	device = strings.TrimSpace(device)
	if device == "" {
		return nil
	}
	return &Monitor{
		device:  device,
		logger:  logging.NewComponentLogger(logger, "camera-monitor"),
		handler: handler,
		present: deviceExists(device),
	}
}

// Device returns the watched device node.
func (m *Monitor) Device() string {
	if m == nil {
		return ""
	}
	return m.device
}

// Present reports whether the camera node was last seen plugged in.
func (m *Monitor) Present() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present
}

// Running reports whether the netlink listener is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start begins listening for udev events. A netlink connection failure is
// logged and otherwise ignored; presence then reflects the startup check only.
func (m *Monitor) Start(ctx context.Context) error {
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
		logging.WarnWithContext(m.logger, "failed to connect to netlink socket; camera hotplug not tracked", "netlink_connect_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "ensure the process may open netlink sockets"),
			logging.String(logging.FieldImpact, "camera presence is only checked at startup"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true
	go m.loop(ctx, conn, m.quit)

	m.logger.Info("camera monitor started",
		logging.String(logging.FieldEventType, "camera_monitor_started"),
		logging.String("device", m.device),
		logging.Bool("present", m.present),
	)
	return nil
}

// Stop shuts down the listener. It is safe to call repeatedly.
func (m *Monitor) Stop() {
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
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false
	m.logger.Info("camera monitor stopped", logging.String(logging.FieldEventType, "camera_monitor_stopped"))
}

func (m *Monitor) loop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "camera hotplug may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=video4linux with ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	devname := deviceName(uevent)
	if devname == "" || devname != m.device {
		m.logger.Debug("ignoring video event",
			logging.String("device", devname),
			logging.String("action", string(uevent.Action)),
		)
		return
	}

	var present bool
	switch uevent.Action {
	case netlink.ADD:
		present = true
	case netlink.REMOVE:
		present = false
	default:
		return
	}

	m.mu.Lock()
	changed := m.present != present
	m.present = present
	m.mu.Unlock()
	if !changed {
		return
	}

	if present {
		m.logger.Info("camera connected",
			logging.String("device", devname),
			logging.String(logging.FieldEventType, "camera_connected"),
		)
	} else {
		logging.WarnWithContext(m.logger, "camera disconnected", "camera_disconnected",
			logging.String("device", devname),
			logging.String(logging.FieldErrorHint, "reconnect the camera"),
			logging.String(logging.FieldImpact, "classifier frames will fail until the camera returns"),
		)
	}
	if m.handler != nil {
		m.handler(devname, present)
	}
}

// deviceName prefers DEVNAME and falls back to the last DEVPATH segment.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}

func deviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package devicemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestNewEmptyDeviceReturnsNil(t *testing.T) {
	m := New("  ", nil, nil)
	if m != nil {
		t.Fatal("expected nil monitor for empty device")
	}
	// nil receivers are safe
	m.Stop()
	if m.Running() || m.Present() || m.Device() != "" {
		t.Fatal("nil monitor should report zero values")
	}
}

func TestNewChecksInitialPresence(t *testing.T) {
	missing := New(filepath.Join(t.TempDir(), "video9"), nil, nil)
	if missing.Present() {
		t.Fatal("expected missing device to be absent")
	}
	node := filepath.Join(t.TempDir(), "video0")
	writeNode(t, node)
	if !New(node, nil, nil).Present() {
		t.Fatal("expected existing node to be present")
	}
}

func TestBuildMatcher(t *testing.T) {
	matcher := buildMatcher()
	cases := []struct {
		name  string
		event netlink.UEvent
		want  bool
	}{
		{"add video", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "video4linux"}}, true},
		{"remove video", netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}, true},
		{"change video", netlink.UEvent{Action: netlink.CHANGE, Env: map[string]string{"SUBSYSTEM": "video4linux"}}, false},
		{"add block", netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"SUBSYSTEM": "block"}}, false},
	}
	for _, tc := range cases {
		if got := matcher.Evaluate(tc.event); got != tc.want {
			t.Errorf("%s: Evaluate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHandleEventTracksPresence(t *testing.T) {
	var calls []bool
	m := New("/dev/video0", nil, func(device string, present bool) {
		if device != "/dev/video0" {
			t.Errorf("unexpected device %q", device)
		}
		calls = append(calls, present)
	})
	m.present = false

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/video1"}})
	if len(calls) != 0 {
		t.Fatal("other devices must be ignored")
	}

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "video0"}})
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"DEVNAME": "/dev/video0"}})
	if !m.Present() || len(calls) != 1 || !calls[0] {
		t.Fatalf("expected single connect callback, got %v", calls)
	}

	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/video4linux/video0"}})
	if m.Present() || len(calls) != 2 || calls[1] {
		t.Fatalf("expected disconnect callback, got %v", calls)
	}
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	m := New("/dev/video0", nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Fatal("expected not running")
	}
}

func writeNode(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write node: %v", err)
	}
}

// Package devicemon tracks camera hotplug through udev netlink events.
package devicemon

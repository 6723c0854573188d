// Package network joins the configured Wi-Fi network or opens the setup
// access point. The real implementation drives NetworkManager through nmcli.
package network

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Mode names reported in status.
const (
	ModeStation     = "STA"
	ModeAccessPoint = "AP"
	ModeOffline     = "OFFLINE"
)

// ConnectTimeout bounds a station association attempt.
const ConnectTimeout = 15 * time.Second

// ErrNoWireless is returned when no wireless interface reports a signal.
var ErrNoWireless = errors.New("no wireless interface")

// Network is the platform network control.
type Network interface {
	// JoinStation associates with ssid. It fails after ConnectTimeout.
	JoinStation(ctx context.Context, ssid, password string) error

	// StartAccessPoint opens an unsecured access point named ssid.
	StartAccessPoint(ctx context.Context, ssid string) error

	// SignalStrength returns the current link level in dBm.
	SignalStrength() (int, error)

	// Address returns the first non-loopback IPv4 address, or "".
	Address() string
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// NMCLI controls Wi-Fi with nmcli.
type NMCLI struct {
	Interface string
	Run       Runner

	// Wireless is the path read for the signal level.
	Wireless string
}

// apConnection is the NetworkManager connection profile used for the AP.
const apConnection = "fridge-sensor-ap"

// NewNMCLI returns a controller for iface (e.g. "wlan0").
func NewNMCLI(iface string) *NMCLI {
	return &NMCLI{Interface: iface, Run: execRunner, Wireless: "/proc/net/wireless"}
}

// JoinStation connects to ssid.
func (n *NMCLI) JoinStation(ctx context.Context, ssid, password string) error {
	if ssid == "" {
		return errors.New("no station SSID configured")
	}
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	args := []string{"--wait", strconv.Itoa(int(ConnectTimeout / time.Second)),
		"device", "wifi", "connect", ssid, "ifname", n.Interface}
	if password != "" {
		args = append(args, "password", password)
	}
	if out, err := n.Run(ctx, "nmcli", args...); err != nil {
		return fmt.Errorf("join %q: %w: %s", ssid, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// StartAccessPoint creates (or replaces) the AP profile and brings it up.
func (n *NMCLI) StartAccessPoint(ctx context.Context, ssid string) error {
	// A missing profile is fine here.
	_, _ = n.Run(ctx, "nmcli", "connection", "delete", apConnection)

	steps := [][]string{
		{"connection", "add", "type", "wifi", "ifname", n.Interface, "con-name", apConnection,
			"autoconnect", "no", "ssid", ssid,
			"802-11-wireless.mode", "ap", "802-11-wireless.band", "bg", "ipv4.method", "shared"},
		{"connection", "up", apConnection},
	}
	for _, args := range steps {
		if out, err := n.Run(ctx, "nmcli", args...); err != nil {
			return fmt.Errorf("start access point %q: %w: %s", ssid, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// SignalStrength reads the link level of the interface from /proc/net/wireless.
func (n *NMCLI) SignalStrength() (int, error) {
	f, err := os.Open(n.Wireless)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoWireless, err)
	}
	defer f.Close()
	return parseWireless(bufio.NewScanner(f), n.Interface)
}

// parseWireless finds iface in /proc/net/wireless:
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt   frag
//	wlan0: 0000   45.  -65.  -256        0      0      0
func parseWireless(sc *bufio.Scanner, iface string) (int, error) {
	for sc.Scan() {
		name, rest, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok || name != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("short wireless line for %s", iface)
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("parse level %q: %w", fields[2], err)
		}
		return int(level), nil
	}
	return 0, ErrNoWireless
}

// Address returns the first non-loopback IPv4 address.
func (n *NMCLI) Address() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipn, ok := a.(*net.IPNet); ok && !ipn.IP.IsLoopback() && ipn.IP.To4() != nil {
			return ipn.IP.String()
		}
	}
	return ""
}

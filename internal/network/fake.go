package network

import (
	"context"
	"sync"
)

// Fake is a test double for Network.
type Fake struct {
	mu sync.Mutex

	// JoinError and APError, if set, are returned by the matching call.
	JoinError error
	APError   error

	// RSSI and SignalError are returned by SignalStrength.
	RSSI        int
	SignalError error

	// Addr is returned by Address.
	Addr string

	// Joined and AccessPoint record the last successful request.
	Joined      string
	AccessPoint string
}

// NewFake creates a Fake that succeeds.
func NewFake() *Fake {
	return &Fake{RSSI: -60, Addr: "192.168.1.50"}
}

// JoinStation records ssid.
func (f *Fake) JoinStation(ctx context.Context, ssid, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.JoinError != nil {
		return f.JoinError
	}
	f.Joined = ssid
	return nil
}

// StartAccessPoint records ssid.
func (f *Fake) StartAccessPoint(ctx context.Context, ssid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.APError != nil {
		return f.APError
	}
	f.AccessPoint = ssid
	return nil
}

// SignalStrength returns RSSI.
func (f *Fake) SignalStrength() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RSSI, f.SignalError
}

// Address returns Addr.
func (f *Fake) Address() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Addr
}

package status

import (
	"bufio"
	"os"
	"runtime"
	"strings"
	"time"
)

// SignalReader reports the current wireless signal strength in dBm.
type SignalReader interface {
	SignalStrength() (int, error)
}

// SystemInfo is the diagnostics snapshot served by /getsys.
type SystemInfo struct {
	ChipModel      string `json:"chip_model"`
	Cores          int    `json:"cores"`
	GoVersion      string `json:"go_version"`
	HeapInUse      uint64 `json:"heap_in_use"`
	HeapTotal      uint64 `json:"heap_total"`
	ExecutableSize int64  `json:"executable_size"`
	StorageUsed    uint64 `json:"storage_used"`
	StorageTotal   uint64 `json:"storage_total"`
	SSID           string `json:"ssid"`
	NetworkMode    string `json:"network_mode"`
	IP             string `json:"ip"`
	RSSI           *int   `json:"rssi,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Version        string `json:"version"`
}

// Collector gathers SystemInfo from the runtime, the filesystem and the tracker.
type Collector struct {
	Tracker *Tracker
	DataDir string
	Signal  SignalReader

	// CPUInfo is the path read for the chip model.
	CPUInfo string
}

// NewCollector returns a collector reading /proc/cpuinfo.
func NewCollector(tracker *Tracker, dataDir string, signal SignalReader) *Collector {
	return &Collector{Tracker: tracker, DataDir: dataDir, Signal: signal, CPUInfo: "/proc/cpuinfo"}
}

// Collect returns a fresh snapshot. The signal strength is read live.
func (c *Collector) Collect() SystemInfo {
	snap := c.Tracker.Snapshot()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	info := SystemInfo{
		ChipModel:     chipModel(c.CPUInfo),
		Cores:         runtime.NumCPU(),
		GoVersion:     runtime.Version(),
		HeapInUse:     ms.HeapInuse,
		HeapTotal:     ms.HeapSys,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		Version:       snap.Config.Version,
		NetworkMode:   "OFFLINE",
	}

	if exe, err := os.Executable(); err == nil {
		if fi, err := os.Stat(exe); err == nil {
			info.ExecutableSize = fi.Size()
		}
	}
	if c.DataDir != "" {
		info.StorageUsed, info.StorageTotal = diskUsage(c.DataDir)
	}
	if snap.Network != nil {
		info.SSID = snap.Network.SSID
		info.NetworkMode = snap.Network.Mode
		info.IP = snap.Network.IP
	}
	if c.Signal != nil && info.NetworkMode == "STA" {
		if rssi, err := c.Signal.SignalStrength(); err == nil {
			info.RSSI = &rssi
		}
	}
	return info
}

// chipModel returns the board model from cpuinfo, falling back to the
// CPU model name and then to GOARCH.
func chipModel(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return runtime.GOARCH
	}
	defer f.Close()

	var modelName string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Model":
			return strings.TrimSpace(value)
		case "model name":
			if modelName == "" {
				modelName = strings.TrimSpace(value)
			}
		}
	}
	if modelName != "" {
		return modelName
	}
	return runtime.GOARCH
}

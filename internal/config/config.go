package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the sentry daemon configuration.
type Config struct {
	// SerialPorts are Tier 1 serial-attached sniffer units.
	SerialPorts []string
	// BridgeAddrs are Tier 1 network-bridged units (host:port).
	BridgeAddrs []string
	BaudRate    int

	NATSURL   string
	RedisAddr string
	// DBConnStr enables the history store when non-empty.
	DBConnStr string

	// ScanIface enables the Tier 0 platform-scan poller when non-empty.
	ScanIface      string
	ScanInterval   time.Duration
	AutoReconnect  bool
	AlertNewTracks bool
}

// Load loads the configuration from environment variables and .env file.
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		SerialPorts:    splitList(os.Getenv("SERIAL_PORTS")),
		BridgeAddrs:    splitList(os.Getenv("BRIDGE_ADDRS")),
		BaudRate:       115200,
		NATSURL:        os.Getenv("NATS_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		DBConnStr:      os.Getenv("DB_CONN_STR"),
		ScanIface:      os.Getenv("SCAN_IFACE"),
		ScanInterval:   30 * time.Second,
		AutoReconnect:  true,
		AlertNewTracks: true,
	}

	if len(cfg.SerialPorts) == 0 && len(cfg.BridgeAddrs) == 0 {
		return nil, fmt.Errorf("at least one of SERIAL_PORTS or BRIDGE_ADDRS is required")
	}

	if cfg.NATSURL == "" {
		cfg.NATSURL = "nats://nats:4222" // Default to Docker service name
	}
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "redis:6379"
	}

	if v := os.Getenv("BAUD_RATE"); v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid BAUD_RATE %q", v)
		}
		cfg.BaudRate = baud
	}

	if v := os.Getenv("SCAN_INTERVAL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid SCAN_INTERVAL_SECONDS %q", v)
		}
		cfg.ScanInterval = time.Duration(secs) * time.Second
	}

	if v := os.Getenv("AUTO_RECONNECT"); v != "" {
		cfg.AutoReconnect = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ALERT_NEW_TRACKS"); v != "" {
		cfg.AlertNewTracks = v == "1" || strings.EqualFold(v, "true")
	}

	return cfg, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Package config loads terminal configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings for one kitchen terminal.
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Printer PrinterConfig
	Gate    GateConfig
	Events  EventsConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"12212"`
}

// BackendConfig points at the cafeteria ordering backend that owns
// orders and payment state.
type BackendConfig struct {
	BaseURL string        `envconfig:"BACKEND_BASE_URL" default:"http://localhost:3000"`
	Timeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`
}

type PrinterConfig struct {
	Transport  string        `envconfig:"PRINTER_TRANSPORT" default:"network"` // network, serial, usb, memory
	Host       string        `envconfig:"PRINTER_HOST" default:"192.168.11.3"`
	Port       int           `envconfig:"PRINTER_PORT" default:"9100"`
	Device     string        `envconfig:"PRINTER_DEVICE" default:""` // serial device path
	Baud       int           `envconfig:"PRINTER_BAUD" default:"9600"`
	VID        uint16        `envconfig:"PRINTER_USB_VID" default:"0"`
	PID        uint16        `envconfig:"PRINTER_USB_PID" default:"0"`
	JobTimeout time.Duration `envconfig:"PRINTER_JOB_TIMEOUT" default:"60s"`
	DryRun     bool          `envconfig:"PRINTER_DRY_RUN" default:"false"`

	// ProfilePath is where saved connection profiles live. Empty
	// disables the profile store.
	ProfilePath string `envconfig:"PRINTER_PROFILES" default:"printer_profiles.json"`

	// AutoConnect dials the configured endpoint at startup instead of
	// waiting for an explicit connect from the operator surface.
	AutoConnect bool `envconfig:"PRINTER_AUTO_CONNECT" default:"true"`
}

type GateConfig struct {
	ScanInterval    time.Duration `envconfig:"GATE_SCAN_INTERVAL" default:"2s"`
	SuccessCooldown time.Duration `envconfig:"GATE_SUCCESS_COOLDOWN" default:"5s"`
	FailureCooldown time.Duration `envconfig:"GATE_FAILURE_COOLDOWN" default:"3s"`
}

// EventsConfig enables the optional kitchen event stream. Publishing is
// skipped entirely when URL is empty.
type EventsConfig struct {
	URL string `envconfig:"NATS_URL" default:""`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

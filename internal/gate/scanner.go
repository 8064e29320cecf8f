// Package gate serializes the kitchen terminal's scan-to-print cycle: it
// owns the camera scan loop, suppresses duplicate scans, and walks each
// accepted token through resolution, ticket formatting and printing.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Decoder yields tokens decoded from the camera feed. Decode returns the
// newest undelivered token, if any.
type Decoder interface {
	Decode() (string, bool)
}

// LatestTokenDecoder buffers the single most recent frame decode. The
// kitchen display pushes decodes in as they happen; the scan loop drains
// them at its own bounded rate, so a code held up to the camera cannot
// trigger faster than the poll interval.
type LatestTokenDecoder struct {
	mu    sync.Mutex
	token string
	has   bool
}

// NewLatestTokenDecoder returns an empty decoder.
func NewLatestTokenDecoder() *LatestTokenDecoder {
	return &LatestTokenDecoder{}
}

// Push records a decoded frame, replacing any undelivered one.
func (d *LatestTokenDecoder) Push(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = token
	d.has = true
}

// Decode hands out the buffered token once.
func (d *LatestTokenDecoder) Decode() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.has {
		return "", false
	}
	d.has = false
	return d.token, true
}

// Scanner polls a Decoder on a fixed interval while running. Start and
// Stop are idempotent.
type Scanner struct {
	decoder   Decoder
	interval  time.Duration
	onDecoded func(string)
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewScanner creates a stopped scanner.
func NewScanner(decoder Decoder, interval time.Duration, onDecoded func(string), logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Scanner{
		decoder:   decoder,
		interval:  interval,
		onDecoded: onDecoded,
		logger:    logger,
	}
}

// Start begins the poll loop. No-op if already running.
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.loop(ctx)
	s.logger.Info("📷 Camera scan loop started")
}

// Stop halts the poll loop. No-op if not running.
func (s *Scanner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.logger.Info("📷 Camera scan loop stopped")
}

// Running reports whether the loop is active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scanner) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if token, ok := s.decoder.Decode(); ok {
				s.onDecoded(token)
			}
		}
	}
}

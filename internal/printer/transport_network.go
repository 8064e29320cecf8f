package printer

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Transport is a byte pipe to a physical printer.
type Transport interface {
	Write(data []byte) (int, error)
	Close() error
}

// StatusQuerier is implemented by transports that support ESC/POS
// real-time status transmission (DLE EOT). The network transport does;
// one-way pipes do not.
type StatusQuerier interface {
	QueryStatus(kind byte) (byte, error)
}

// DLE EOT status kinds.
const (
	StatusOffline byte = 2 // offline cause, carries the cover bit
	StatusPaper   byte = 4 // paper roll sensor
)

// Status byte masks for the kinds above.
const (
	maskCoverOpen    byte = 0x04 // offline cause: cover is open
	maskPaperNearEnd byte = 0x0C // paper sensor: near-end detected
	maskPaperEnd     byte = 0x60 // paper sensor: roll end detected
)

// NetworkTransport is a raw-socket connection to a network printer.
type NetworkTransport struct {
	conn net.Conn
	mu   sync.Mutex
}

// DialNetwork connects to a network printer.
func DialNetwork(host string, port int) (*NetworkTransport, error) {
	address := fmt.Sprintf("%s:%d", host, port)

	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to network printer: %w", err)
	}

	return &NetworkTransport{conn: conn}, nil
}

// Write sends data to the printer.
func (t *NetworkTransport) Write(data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn.Write(data)
}

// QueryStatus issues a DLE EOT real-time status request and reads the
// single status byte the printer answers with.
func (t *NetworkTransport) QueryStatus(kind byte) (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.conn.Write([]byte{0x10, 0x04, kind}); err != nil {
		return 0, fmt.Errorf("failed to request printer status: %w", err)
	}

	if err := t.conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		return 0, err
	}
	defer t.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 1)
	if _, err := t.conn.Read(buf); err != nil {
		return 0, fmt.Errorf("failed to read printer status: %w", err)
	}

	return buf[0], nil
}

// Close closes the connection.
func (t *NetworkTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn.Close()
	}

	return nil
}

package printer

import (
	"fmt"
	"sync"

	"github.com/tarm/serial"
)

// SerialTransport is a serial-port connection to a printer.
type SerialTransport struct {
	port *serial.Port
	mu   sync.Mutex
}

// OpenSerial opens a serial printer.
func OpenSerial(device string, baud int) (*SerialTransport, error) {
	if baud == 0 {
		baud = 9600 // Default for most thermal printers
	}

	config := &serial.Config{
		Name: device,
		Baud: baud,
	}

	port, err := serial.OpenPort(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	return &SerialTransport{port: port}, nil
}

// Write sends data to the printer.
func (t *SerialTransport) Write(data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.port.Write(data)
}

// Close closes the port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return t.port.Close()
	}

	return nil
}

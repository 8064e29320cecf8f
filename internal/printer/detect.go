package printer

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/gousb"
	"github.com/tarm/serial"
)

// DetectedPrinter is a printer found on the local machine, described well
// enough to build an Endpoint from it.
type DetectedPrinter struct {
	Endpoint    Endpoint `json:"endpoint"`
	Description string   `json:"description"`
}

// Detect scans USB and serial buses for attached printers. Network
// printers cannot be discovered this way and must be configured directly.
func Detect() []DetectedPrinter {
	var found []DetectedPrinter
	found = append(found, detectUSB()...)
	found = append(found, detectSerial()...)
	return found
}

// detectUSB enumerates USB devices and keeps those advertising the
// printer device class.
func detectUSB() []DetectedPrinter {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var found []DetectedPrinter

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return true
	})
	if err != nil {
		return nil
	}

	for _, dev := range devices {
		desc := dev.Desc

		isPrinter := desc.Class == gousb.ClassPrinter
		if !isPrinter {
			for _, cfg := range desc.Configs {
				for _, iface := range cfg.Interfaces {
					for _, alt := range iface.AltSettings {
						if alt.Class == gousb.ClassPrinter {
							isPrinter = true
						}
					}
				}
			}
		}
		if !isPrinter {
			dev.Close()
			continue
		}

		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		description := fmt.Sprintf("USB: %04X:%04X", desc.Vendor, desc.Product)
		if manufacturer != "" || product != "" {
			description = fmt.Sprintf("USB: %s %s (%04X:%04X)",
				manufacturer, product, desc.Vendor, desc.Product)
		}

		found = append(found, DetectedPrinter{
			Endpoint: Endpoint{
				Transport: "usb",
				VendorID:  uint16(desc.Vendor),
				ProductID: uint16(desc.Product),
			},
			Description: description,
		})
		dev.Close()
	}

	return found
}

// detectSerial probes likely serial device paths for the current OS.
func detectSerial() []DetectedPrinter {
	var ports []string

	switch runtime.GOOS {
	case "darwin":
		skipPatterns := []string{"Bluetooth", "Modem", "SPP", "DialIn", "Callout", "KeySerial", "debug-console"}

		cuPorts, _ := filepath.Glob("/dev/cu.*")
		ttyPorts, _ := filepath.Glob("/dev/tty.*")
		for _, port := range append(cuPorts, ttyPorts...) {
			skip := false
			for _, pattern := range skipPatterns {
				if strings.Contains(port, pattern) {
					skip = true
					break
				}
			}
			if !skip {
				ports = append(ports, port)
			}
		}

	case "linux":
		usbPorts, _ := filepath.Glob("/dev/ttyUSB*")
		acmPorts, _ := filepath.Glob("/dev/ttyACM*")
		ports = append(ports, usbPorts...)
		ports = append(ports, acmPorts...)

	case "windows":
		for i := 1; i <= 256; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
	}

	var found []DetectedPrinter
	for _, portPath := range ports {
		port, err := serial.OpenPort(&serial.Config{Name: portPath, Baud: 9600})
		if err != nil {
			continue
		}
		port.Close()

		found = append(found, DetectedPrinter{
			Endpoint:    Endpoint{Transport: "serial", Device: portPath, Baud: 9600},
			Description: fmt.Sprintf("Serial: %s", portPath),
		})
	}

	return found
}

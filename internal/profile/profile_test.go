package profile

import (
	"path/filepath"
	"testing"

	"github.com/gakushoku/kitchen-terminal/internal/printer"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s, path
}

func TestRememberIsStable(t *testing.T) {
	s, _ := tempStore(t)

	ep := printer.Endpoint{Transport: "network", Host: "192.168.11.3", Port: 9100}

	id1 := s.Remember(ep, "Kitchen network printer")
	if id1 == "" {
		t.Fatal("Expected non-empty profile ID")
	}

	id2 := s.Remember(ep, "Kitchen network printer")
	if id1 != id2 {
		t.Errorf("Expected same ID for same endpoint: %s != %s", id1, id2)
	}
}

func TestRememberUSBAndSerial(t *testing.T) {
	s, _ := tempStore(t)

	usb := s.Remember(printer.Endpoint{Transport: "usb", VendorID: 0x04B8, ProductID: 0x0E15}, "Epson TM-T20")
	serial := s.Remember(printer.Endpoint{Transport: "serial", Device: "/dev/ttyUSB0", Baud: 9600}, "Serial printer")

	if usb == "" || serial == "" {
		t.Fatal("Expected non-empty profile IDs")
	}
	if usb == serial {
		t.Error("Different endpoints produced the same profile ID")
	}
	if got := len(s.All()); got != 2 {
		t.Errorf("Expected 2 profiles, got %d", got)
	}
}

func TestSetNameAndGet(t *testing.T) {
	s, _ := tempStore(t)

	id := s.Remember(printer.Endpoint{Transport: "network", Host: "10.0.0.5", Port: 9100}, "Counter printer")

	if !s.SetName(id, "カウンター") {
		t.Error("Expected successful name set")
	}

	entry := s.Get(id)
	if entry == nil {
		t.Fatal("Expected profile, got nil")
	}
	if entry.Name != "カウンター" {
		t.Errorf("Expected name カウンター, got %q", entry.Name)
	}
	if entry.Endpoint.Host != "10.0.0.5" {
		t.Errorf("Expected host 10.0.0.5, got %q", entry.Endpoint.Host)
	}

	if s.SetName("no-such-id", "x") {
		t.Error("SetName with unknown ID reported success")
	}
}

func TestRemove(t *testing.T) {
	s, _ := tempStore(t)

	id := s.Remember(printer.Endpoint{Transport: "usb", VendorID: 0x1234, ProductID: 0x5678}, "Test")

	if !s.Remove(id) {
		t.Error("Expected successful removal")
	}
	if s.Get(id) != nil {
		t.Error("Expected nil after removal")
	}
	if s.Remove(id) {
		t.Error("Removing twice reported success")
	}
}

func TestPersistence(t *testing.T) {
	s1, path := tempStore(t)

	ep := printer.Endpoint{Transport: "network", Host: "192.168.11.3", Port: 9100}
	id1 := s1.Remember(ep, "Kitchen printer")
	s1.SetName(id1, "厨房")

	// Simulate an app restart.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	id2 := s2.Remember(ep, "Kitchen printer")
	if id1 != id2 {
		t.Errorf("Expected same ID after reload: %s != %s", id1, id2)
	}
	if entry := s2.Get(id2); entry == nil || entry.Name != "厨房" {
		t.Errorf("Expected name to persist, got %+v", entry)
	}
}

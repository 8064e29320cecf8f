// Package profile persists named printer connection profiles, so a
// terminal remembers its kitchen printer across restarts.
package profile

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/gakushoku/kitchen-terminal/internal/printer"
)

// Entry is one saved printer profile.
type Entry struct {
	ID          string           `json:"id"`
	IdentityKey string           `json:"identity_key"`
	Endpoint    printer.Endpoint `json:"endpoint"`
	Description string           `json:"description"`
	Name        string           `json:"name,omitempty"` // operator-set label
}

// Store is a JSON-file-backed profile collection.
type Store struct {
	filePath string
	data     map[string]*Entry
	mu       sync.RWMutex
}

// Open loads the profile store at filePath, creating it lazily on first
// save if it does not exist yet.
func Open(filePath string) (*Store, error) {
	s := &Store{
		filePath: filePath,
		data:     make(map[string]*Entry),
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load printer profiles: %w", err)
		}
	}

	return s, nil
}

// Remember stores the endpoint if it is new and returns its stable profile
// ID either way.
func (s *Store) Remember(ep printer.Endpoint, description string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(ep, description)
	if entry, exists := s.data[key]; exists {
		return entry.ID
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		IdentityKey: key,
		Endpoint:    ep,
		Description: description,
	}
	s.data[key] = entry

	if err := s.save(); err != nil {
		// Non-critical; the next save retries.
	}

	return entry.ID
}

// Get returns a copy of the profile with the given ID, or nil.
func (s *Store) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.data {
		if entry.ID == id {
			cp := *entry
			return &cp
		}
	}
	return nil
}

// SetName labels a profile. Returns false when the ID is unknown.
func (s *Store) SetName(id, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.data {
		if entry.ID == id {
			entry.Name = name
			s.save()
			return true
		}
	}
	return false
}

// Remove deletes a profile. Returns false when the ID is unknown.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.data {
		if entry.ID == id {
			delete(s.data, key)
			s.save()
			return true
		}
	}
	return false
}

// All returns copies of every saved profile.
func (s *Store) All() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, 0, len(s.data))
	for _, entry := range s.data {
		cp := *entry
		out = append(out, &cp)
	}
	return out
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0644)
}

// identityKey derives a stable key from the endpoint's addressing fields.
func identityKey(ep printer.Endpoint, description string) string {
	switch ep.Transport {
	case "usb":
		if ep.VendorID != 0 && ep.ProductID != 0 {
			return fmt.Sprintf("usb:%04X:%04X", ep.VendorID, ep.ProductID)
		}
	case "serial":
		if ep.Device != "" {
			return fmt.Sprintf("serial:%s", ep.Device)
		}
	case "network":
		if ep.Host != "" {
			return fmt.Sprintf("network:%s:%d", ep.Host, ep.Port)
		}
	}

	hash := md5.Sum([]byte(ep.Transport + ":" + description))
	return fmt.Sprintf("hash:%x", hash)
}

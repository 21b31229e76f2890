package position

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when an order id is absent from the store.
var ErrNotFound = errors.New("position not found")

// Store persists the open-position collection as a single JSON file. The
// file is the source of truth shared between the entry evaluator and the
// monitor; every write builds the full new collection and replaces the
// file with a rename so a concurrent reader never observes a partial
// update.
type Store struct {
	path string
}

type storeFile struct {
	Positions []Position `json:"positions"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the current collection. A missing file is an empty store.
func (s *Store) Load() ([]Position, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading position store: %w", err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding position store: %w", err)
	}
	return f.Positions, nil
}

// Replace atomically rewrites the store with the given collection.
func (s *Store) Replace(positions []Position) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(storeFile{Positions: positions}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding position store: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing temp store: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing position store: %w", err)
	}
	return nil
}

// Append adds a new position to the collection.
func (s *Store) Append(p Position) error {
	positions, err := s.Load()
	if err != nil {
		return err
	}
	return s.Replace(append(positions, p))
}

// Update rewrites the record matching p's order id.
func (s *Store) Update(p Position) error {
	positions, err := s.Load()
	if err != nil {
		return err
	}
	for i := range positions {
		if positions[i].OrderID == p.OrderID {
			positions[i] = p
			return s.Replace(positions)
		}
	}
	return ErrNotFound
}

// Remove deletes the record matching the order id.
func (s *Store) Remove(orderID string) error {
	positions, err := s.Load()
	if err != nil {
		return err
	}
	kept := positions[:0]
	found := false
	for _, p := range positions {
		if p.OrderID == orderID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrNotFound
	}
	return s.Replace(kept)
}

// CountForMarket returns how many positions are open for a market code.
func (s *Store) CountForMarket(code string) (int, error) {
	positions, err := s.Load()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range positions {
		if p.Market == code {
			n++
		}
	}
	return n, nil
}

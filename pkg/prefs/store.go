// Package prefs persists the dashboard appearance and indicator toggles.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/raykavin/signalsense/pkg/core"
	"github.com/raykavin/signalsense/pkg/logger"
	"github.com/tidwall/buntdb"
)

var ErrClosed = errors.New("preference store is closed")

const (
	keyDarkMode    = "darkMode"
	keyShowCandles = "showCandles"
	keyShowSMA     = "showSMA"
	keyShowRSI     = "showRSI"
	keyShowEMAs    = "showEMAs"
)

// Preferences is the persisted part of the dashboard state.
type Preferences struct {
	DarkMode bool         `json:"darkMode"`
	Toggles  core.Toggles `json:"toggles"`
}

// Defaults is what a first start, or a corrupt value, falls back to.
func Defaults() Preferences {
	return Preferences{Toggles: core.DefaultToggles()}
}

// Store keeps one JSON value per preference key in buntdb.
type Store struct {
	db  *buntdb.DB
	log logger.Logger

	mu     sync.Mutex
	closed bool
}

// FromMemory creates a store that lives as long as the process.
func FromMemory(log logger.Logger) (*Store, error) {
	return NewStore(":memory:", log)
}

// FromFile creates a store persisted to file.
func FromFile(file string, log logger.Logger) (*Store, error) {
	return NewStore(file, log)
}

func NewStore(sourceFile string, log logger.Logger) (*Store, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Load reads every key. Missing or unparsable values fall back to their
// default one by one; only storage failures are returned.
func (s *Store) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Defaults()
	if s.closed {
		return p, ErrClosed
	}

	err := s.db.View(func(tx *buntdb.Tx) error {
		s.read(tx, keyDarkMode, &p.DarkMode)
		s.read(tx, keyShowCandles, &p.Toggles.ShowCandles)
		s.read(tx, keyShowSMA, &p.Toggles.ShowSMA)
		s.read(tx, keyShowRSI, &p.Toggles.ShowRSI)

		var emas map[core.IndicatorKey]bool
		if s.read(tx, keyShowEMAs, &emas) {
			for _, k := range core.EMAKeys {
				p.Toggles.ShowEMAs[k] = emas[k]
			}
		}
		return nil
	})
	if err != nil {
		return Defaults(), fmt.Errorf("failed to load preferences: %w", err)
	}

	return p, nil
}

// Save writes every key in one transaction.
func (s *Store) Save(p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	toggles := p.Toggles.Clone()
	values := map[string]any{
		keyDarkMode:    p.DarkMode,
		keyShowCandles: toggles.ShowCandles,
		keyShowSMA:     toggles.ShowSMA,
		keyShowRSI:     toggles.ShowRSI,
		keyShowEMAs:    toggles.ShowEMAs,
	}

	return s.db.Update(func(tx *buntdb.Tx) error {
		for key, value := range values {
			content, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", key, err)
			}

			if _, _, err := tx.Set(key, string(content), nil); err != nil {
				return fmt.Errorf("failed to store %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close releases the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// read decodes key into dst and reports whether it did. dst is untouched
// on failure.
func (s *Store) read(tx *buntdb.Tx, key string, dst any) bool {
	value, err := tx.Get(key)
	if err != nil {
		if !errors.Is(err, buntdb.ErrNotFound) {
			s.log.WithError(err).Debugf("preference %s unreadable, using default", key)
		}
		return false
	}

	if err := json.Unmarshal([]byte(value), dst); err != nil {
		s.log.WithError(err).Debugf("preference %s corrupt, using default", key)
		return false
	}
	return true
}

// Package prefs persists the user's car selection and language.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/cartrack/internal/pkg/stream"
	"github.com/autopeer-io/cartrack/pkg/log"
)

// Preference is the persisted user choice. An empty field is absent.
type Preference struct {
	SelectedCarID string `yaml:"selectedCarId,omitempty" json:"selectedCarId,omitempty"`
	Language      string `yaml:"languageCode,omitempty" json:"languageCode,omitempty"`
}

// Store keeps preferences in a YAML file and publishes every change,
// whether made through Update or by editing the file.
type Store struct {
	path   string
	logger log.Logger

	// mu serializes writers.
	mu    sync.Mutex
	prefs *stream.State[Preference]
}

// Open loads the preferences at path. A missing file yields empty preferences.
func Open(path string) (*Store, error) {
	p, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:   path,
		logger: log.WithName("prefs").WithValues("path", path),
		prefs: stream.NewStateOf(p, stream.WithEqual(func(a, b Preference) bool {
			return a == b
		})),
	}, nil
}

func (s *Store) Path() string { return s.path }

// Current returns the latest preferences.
func (s *Store) Current() Preference {
	p, _ := s.prefs.Get()
	return p
}

// Preferences streams preferences, starting with the current ones.
// Consecutive equal values are not repeated.
func (s *Store) Preferences(ctx context.Context) <-chan Preference {
	return s.prefs.Subscribe(ctx)
}

// Update applies fn to a copy of the current preferences and persists the
// result with a single atomic file replacement.
func (s *Store) Update(fn func(p *Preference)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Current()
	fn(&next)

	if err := save(s.path, next); err != nil {
		return err
	}
	s.prefs.Set(next)
	return nil
}

// SelectCar stores id as the active car. An empty id clears the selection.
func (s *Store) SelectCar(id string) error {
	return s.Update(func(p *Preference) { p.SelectedCarID = id })
}

// SetLanguage stores the preferred language code.
func (s *Store) SetLanguage(code string) error {
	return s.Update(func(p *Preference) { p.Language = code })
}

// Run watches the preferences file and republishes external edits until
// ctx is done.
func (s *Store) Run(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched so that atomic replacements are observed.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.logger.Info("Watching preferences")

	// Catch edits made between Open and the watch being set up.
	s.reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				s.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error(err, "Preferences watcher error")
		}
	}
}

func (s *Store) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := load(s.path)
	if err != nil {
		s.logger.Warn("Ignoring unreadable preferences", "error", err)
		return
	}
	s.prefs.Set(p)
}

func load(path string) (Preference, error) {
	var p Preference
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	return p, nil
}

func save(path string, p Preference) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preferences-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

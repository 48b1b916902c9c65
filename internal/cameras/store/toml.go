// Package store persists camera records.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camnode/internal/cameras"
)

const defaultPath = "cameras.toml"

// file is the on-disk layout of the cameras file.
type file struct {
	Version int                       `toml:"version"`
	Cameras map[string]cameras.Camera `toml:"cameras"`
}

// TOML is a cameras.Repository backed by a single TOML file.
type TOML struct {
	path string
	mu   sync.RWMutex
	data file
	now  func() time.Time
}

// NewTOML creates a TOML store at path, defaulting to cameras.toml.
func NewTOML(path string) *TOML {
	if path == "" {
		path = defaultPath
	}
	return &TOML{
		path: path,
		data: file{Version: 1, Cameras: make(map[string]cameras.Camera)},
		now:  time.Now,
	}
}

// Path returns the backing file path.
func (s *TOML) Path() string {
	return s.path
}

// Load reads the file, replacing the in-memory state.
func (s *TOML) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cameras file: %w", err)
	}

	var loaded file
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse cameras file: %w", err)
	}
	if loaded.Cameras == nil {
		loaded.Cameras = make(map[string]cameras.Camera)
	}
	if loaded.Version == 0 {
		loaded.Version = 1
	}
	// The table key is authoritative for the id
	for id, c := range loaded.Cameras {
		c.ID = id
		loaded.Cameras[id] = c
	}

	s.mu.Lock()
	s.data = loaded
	s.mu.Unlock()
	return nil
}

// Get implements cameras.Repository.
func (s *TOML) Get(id string) (cameras.Camera, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data.Cameras[id]
	if !ok {
		return cameras.Camera{}, cameras.ErrNotFound
	}
	return c, nil
}

// List implements cameras.Repository.
func (s *TOML) List() ([]cameras.Camera, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cameras.Camera, 0, len(s.data.Cameras))
	for _, c := range s.data.Cameras {
		out = append(out, c)
	}
	return out, nil
}

// Create implements cameras.Repository.
func (s *TOML) Create(camera cameras.Camera) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data.Cameras[camera.ID]; exists {
		return cameras.ErrExists
	}
	now := s.now().UTC()
	if camera.CreatedAt.IsZero() {
		camera.CreatedAt = now
	}
	camera.UpdatedAt = now

	s.data.Cameras[camera.ID] = camera
	if err := s.saveLocked(); err != nil {
		delete(s.data.Cameras, camera.ID)
		return err
	}
	return nil
}

// Update implements cameras.Repository.
func (s *TOML) Update(id string, patch cameras.Patch) (cameras.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.data.Cameras[id]
	if !ok {
		return cameras.Camera{}, cameras.ErrNotFound
	}
	updated := patch.Apply(old)
	updated.UpdatedAt = s.now().UTC()

	s.data.Cameras[id] = updated
	if err := s.saveLocked(); err != nil {
		s.data.Cameras[id] = old
		return cameras.Camera{}, err
	}
	return updated, nil
}

// Delete implements cameras.Repository.
func (s *TOML) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.data.Cameras[id]
	if !ok {
		return cameras.ErrNotFound
	}
	delete(s.data.Cameras, id)
	if err := s.saveLocked(); err != nil {
		s.data.Cameras[id] = old
		return err
	}
	return nil
}

// saveLocked writes the file through a temp file and rename so readers and
// file watchers never observe a partial write. Caller holds mu.
func (s *TOML) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cameras directory: %w", err)
	}

	data, err := toml.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal cameras: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cameras: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cameras: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace cameras file: %w", err)
	}
	return nil
}

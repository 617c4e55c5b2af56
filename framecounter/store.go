// Package framecounter persists the next free frame index shared by the RGB and depth
// streams of extraction batches.
package framecounter

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/weedscan/weedpipe/utils"
)

// ErrCounterState is returned when the persisted counter cannot be read, decoded or written,
// or when a commit would move it backwards.
var ErrCounterState = errors.New("frame counter state error")

// State is the persisted counter record.
type State struct {
	NextFrame int `json:"next_frame"`
}

// Validate rejects negative counters.
func (s State) Validate() error {
	if s.NextFrame < 0 {
		return errors.Wrapf(ErrCounterState, "next_frame is negative (%d)", s.NextFrame)
	}
	return nil
}

// Store loads and saves counter state. Implementations are single writer.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// FileStore keeps the state as JSON in a file.
type FileStore struct {
	fsys utils.FileSystem
	path string
}

// NewFileStore returns a store persisting to path through fsys.
func NewFileStore(fsys utils.FileSystem, path string) *FileStore {
	return &FileStore{fsys: fsys, path: path}
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state. A missing file is a fresh counter at 0.
func (s *FileStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	data, err := s.fsys.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, errors.Wrapf(ErrCounterState, "reading %s: %v", s.path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw struct {
		NextFrame *int `json:"next_frame"`
	}
	if err := dec.Decode(&raw); err != nil {
		return State{}, errors.Wrapf(ErrCounterState, "decoding %s: %v", s.path, err)
	}
	if raw.NextFrame == nil {
		return State{}, errors.Wrapf(ErrCounterState, "%s has no next_frame", s.path)
	}
	state := State{NextFrame: *raw.NextFrame}
	if err := state.Validate(); err != nil {
		return State{}, errors.Wrap(err, s.path)
	}
	return state, nil
}

// Save writes the state, creating the parent directory when needed.
func (s *FileStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrapf(ErrCounterState, "encoding: %v", err)
	}
	if err := s.fsys.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return errors.Wrapf(ErrCounterState, "creating directory for %s: %v", s.path, err)
	}
	if err := s.fsys.WriteFile(s.path, append(data, '\n'), 0o600); err != nil {
		return errors.Wrapf(ErrCounterState, "writing %s: %v", s.path, err)
	}
	return nil
}

// MemoryStore keeps the state in memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	saves int
}

// NewMemoryStore returns a store starting at initial.
func NewMemoryStore(initial State) *MemoryStore {
	return &MemoryStore{state: initial}
}

// Load returns the current state.
func (s *MemoryStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Save replaces the current state.
func (s *MemoryStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

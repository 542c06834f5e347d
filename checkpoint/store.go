// Package checkpoint persists the consumer cursor between runs.
//
// A checkpoint file holds a single length-prefixed msgpack frame. Saves go
// through a temp file and rename so a crash never leaves a torn file.
package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/sluice/feed"
)

// ErrNotFound is returned by Load when no checkpoint exists yet.
var ErrNotFound = errors.New("checkpoint not found")

// formatVersion is bumped on incompatible payload changes.
const formatVersion = 1

// Checkpoint is the persisted consumer position.
type Checkpoint struct {
	Version   int         `msgpack:"version"`
	Feed      string      `msgpack:"feed"`
	Database  string      `msgpack:"database"`
	Cursor    feed.Cursor `msgpack:"cursor"`
	Records   int64       `msgpack:"records"`
	UpdatedAt time.Time   `msgpack:"updated_at"`
}

// Store loads and saves checkpoints.
type Store interface {
	Load() (*Checkpoint, error)
	Save(cp *Checkpoint) error
}

// FileStore is a Store backed by one file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the checkpoint file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the checkpoint.
// Returns ErrNotFound when the file is absent and *FrameError when corrupt.
func (s *FileStore) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	payload, err := readFrame(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := msgpack.Unmarshal(payload, &cp); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode checkpoint", Err: err}
	}
	if cp.Version != formatVersion {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unsupported version %d", cp.Version)}
	}
	return &cp, nil
}

// Save writes cp atomically, creating the parent directory if needed.
func (s *FileStore) Save(cp *Checkpoint) error {
	out := *cp
	out.Version = formatVersion
	payload, err := msgpack.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := writeFrame(tmp, payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	committed = true
	return nil
}

var _ Store = (*FileStore)(nil)

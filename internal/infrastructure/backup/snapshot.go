package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vroom/internal/core/domain"
)

const (
	snapshotVersion    = "1"
	snapshotPrefix     = "snapshot-"
	snapshotTimeFormat = "20060102-150405"
)

// Snapshot is a point-in-time copy of the durable room state. Participants
// and livestream sessions are connection-bound and never snapshotted.
type Snapshot struct {
	Version   string                                `json:"version"`
	CreatedAt time.Time                             `json:"created_at"`
	Rooms     []*domain.Room                        `json:"rooms"`
	Assets    map[domain.RoomID][]*domain.RoomAsset `json:"assets"`
}

// Store persists snapshots as JSON files in a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Write saves the snapshot under a timestamped name. The file is written to
// a temp path first so a crash never leaves a half-written snapshot behind.
func (s *Store) Write(snap *Snapshot) (string, error) {
	snap.Version = snapshotVersion
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := snapshotPrefix + snap.CreatedAt.Format(snapshotTimeFormat) + ".json"
	tmp := filepath.Join(s.dir, name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return name, nil
}

func (s *Store) Read(name string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", name, err)
	}
	if snap.Version == "" {
		return nil, fmt.Errorf("invalid snapshot %s: missing version", name)
	}
	return &snap, nil
}

// List returns snapshot names in chronological order. The timestamped naming
// makes lexical order chronological.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the newest snapshot name, or "" when none exist.
func (s *Store) Latest() (string, error) {
	names, err := s.List()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[len(names)-1], nil
}

func (s *Store) Delete(name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}

// Prune removes all but the newest keep snapshots.
func (s *Store) Prune(keep int) error {
	names, err := s.List()
	if err != nil {
		return err
	}
	if keep < 1 {
		keep = 1
	}
	for len(names) > keep {
		if err := s.Delete(names[0]); err != nil {
			return fmt.Errorf("failed to prune snapshot %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}

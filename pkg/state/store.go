package state

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event is one line of the append-only change log. Events are never mutated;
// downstream consumers (worktree tooling, notifiers) tail this file.
type Event struct {
	TS      time.Time      `json:"ts"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// CardState is what the outbound pass last observed about a single card.
type CardState struct {
	ListID  string   `json:"listId"`
	Labels  []string `json:"labels"`
	SyncURL string   `json:"syncUrl,omitempty"`
}

// Snapshot is the latest-wins record of board observations. Only the last
// line of the snapshot log is ever read.
type Snapshot struct {
	TS        time.Time            `json:"ts"`
	Trello    map[string]CardState `json:"trello"`
	Project   map[string]string    `json:"project,omitempty"`
	Worktrees json.RawMessage      `json:"worktrees,omitempty"`
}

const (
	eventsFile    = "events.jsonl"
	snapshotsFile = "snapshots.jsonl"
)

// Store persists the event log and snapshot log as line-delimited JSON under
// a single directory. Only one process writes at a time; rotation of the
// event log is an external concern.
type Store struct {
	dir string

	// Now is swappable for tests.
	Now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// first append.
func NewStore(dir string) *Store {
	return &Store{dir: dir, Now: time.Now}
}

// Dir returns the state directory, for backup tooling.
func (s *Store) Dir() string {
	return s.dir
}

// AppendEvent appends one event line and returns the written record.
func (s *Store) AppendEvent(evtType string, payload map[string]any) (Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	evt := Event{TS: s.Now().UTC(), Type: evtType, Payload: payload}
	if err := s.appendLine(eventsFile, evt); err != nil {
		return Event{}, fmt.Errorf("append event: %w", err)
	}
	return evt, nil
}

// AppendSnapshot appends a snapshot line, stamping its timestamp.
func (s *Store) AppendSnapshot(snap Snapshot) error {
	snap.TS = s.Now().UTC()
	if err := s.appendLine(snapshotsFile, snap); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the last parsable snapshot line, or nil if the log
// is missing or holds nothing readable. A malformed trailing line (crash
// mid-write) must not abort the read.
func (s *Store) LatestSnapshot() (*Snapshot, error) {
	f, err := os.Open(filepath.Join(s.dir, snapshotsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot log: %w", err)
	}
	defer f.Close()

	var latest *Snapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			continue
		}
		latest = &snap
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshot log: %w", err)
	}
	return latest, nil
}

func (s *Store) appendLine(name string, record any) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

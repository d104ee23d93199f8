package meta

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Sentinel markers delimiting the machine-readable block inside a card description.
// Everything outside the markers belongs to the user.
const (
	BeginMarker = "--- sync-meta ---"
	EndMarker   = "--- end sync-meta ---"
)

// SyncMetadata is the key-value record embedded in a card description. It lets
// the syncer recognize cards it created on previous runs.
type SyncMetadata struct {
	Source         string
	ItemID         string
	IssueID        string
	PRID           string
	URL            string
	Status         string
	LastSeen       time.Time
	LastTrelloMove time.Time
	ContentHash    string // hash of the base text as last written
	SourceHash     string // hash of the upstream-generated body at that write
}

// Parse locates the sync block in a description and decodes it. Returns nil if
// no block is present. Unknown keys are ignored so newer writers stay readable.
func Parse(desc string) *SyncMetadata {
	begin := strings.Index(desc, BeginMarker)
	if begin < 0 {
		return nil
	}
	block := desc[begin+len(BeginMarker):]
	if end := strings.Index(block, EndMarker); end >= 0 {
		block = block[:end]
	}

	m := &SyncMetadata{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "source":
			m.Source = value
		case "item_id":
			m.ItemID = value
		case "issue_id":
			m.IssueID = value
		case "pr_id":
			m.PRID = value
		case "url":
			m.URL = value
		case "status":
			m.Status = value
		case "last_seen":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				m.LastSeen = t
			}
		case "last_trello_move":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				m.LastTrelloMove = t
			}
		case "content_hash":
			m.ContentHash = value
		case "source_hash":
			m.SourceHash = value
		}
	}
	return m
}

// Format serializes metadata as a sentinel-delimited block. Absent fields are
// omitted; key order is fixed.
func Format(m *SyncMetadata) string {
	var b strings.Builder
	b.WriteString(BeginMarker)
	b.WriteString("\n")
	writeKV(&b, "source", m.Source)
	writeKV(&b, "item_id", m.ItemID)
	writeKV(&b, "issue_id", m.IssueID)
	writeKV(&b, "pr_id", m.PRID)
	writeKV(&b, "url", m.URL)
	writeKV(&b, "status", m.Status)
	if !m.LastSeen.IsZero() {
		writeKV(&b, "last_seen", m.LastSeen.UTC().Format(time.RFC3339))
	}
	if !m.LastTrelloMove.IsZero() {
		writeKV(&b, "last_trello_move", m.LastTrelloMove.UTC().Format(time.RFC3339))
	}
	writeKV(&b, "content_hash", m.ContentHash)
	writeKV(&b, "source_hash", m.SourceHash)
	b.WriteString(EndMarker)
	return b.String()
}

func writeKV(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s=%s\n", key, value)
}

// ExtractBase returns the user-owned portion of a description: everything
// outside the sync block, trimmed.
func ExtractBase(desc string) string {
	begin := strings.Index(desc, BeginMarker)
	if begin < 0 {
		return strings.TrimSpace(desc)
	}
	before := desc[:begin]
	after := ""
	rest := desc[begin+len(BeginMarker):]
	if end := strings.Index(rest, EndMarker); end >= 0 {
		after = rest[end+len(EndMarker):]
	}
	return strings.TrimSpace(before + after)
}

// UpdateDescription combines user-owned base text with a formatted sync block.
// Round trips are stable: extracting the base from the result yields the
// trimmed input base.
func UpdateDescription(base, block string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return block
	}
	return base + "\n\n" + block
}

// Hash returns the content hash of base text, used to detect manual edits
// between runs.
func Hash(base string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(base)))
	return hex.EncodeToString(sum[:])[:16]
}

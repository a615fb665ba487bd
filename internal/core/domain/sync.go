package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the change name used in logs.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// DocumentChange is a change event from a document source.
// For deletions only Document.SourceID and Document.Path are set.
type DocumentChange struct {
	Type     ChangeType
	Document Document
}

// SyncState records what was last indexed for one source ID, so a later
// sync can skip unchanged content and delete points that no longer exist.
type SyncState struct {
	// SourceID is the indexed document's source ID.
	SourceID string

	// Chunks is the number of points written, {SourceID}:0 .. Chunks-1.
	Chunks int

	// ContentHash is the IndexHash of the indexed text, its metadata and
	// the pipeline that chunked it.
	ContentHash string

	// LastSync is when the document was last indexed.
	LastSync time.Time
}

// ContentHash returns the hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// IndexHash returns the hex SHA-256 of everything that shapes the points
// written for a document: its text, its metadata and the pipeline
// description. Metadata keys are hashed in sorted order with their types,
// so 42 and "42" differ.
func IndexHash(text string, metadata map[string]any, pipeline string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(text))
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%q=%T:%v", k, metadata[k], metadata[k])
	}
	fmt.Fprintf(h, "\x00pipeline=%s", pipeline)
	return hex.EncodeToString(h.Sum(nil))
}

// SyncReport summarises one directory sync.
type SyncReport struct {
	Indexed   int
	Unchanged int
	Deleted   int
	Failed    int

	// Chunks is the number of points written by this sync.
	Chunks int
}

// Package model holds the message and state types shared by the file-sync
// pipeline, the index actor, and the search engine.
package model

import "time"

// FileAddress is an interned, normalized absolute path. Two events for the
// same file share one *FileAddress instance, so addresses may be compared by
// identity as well as by value.
type FileAddress struct {
	Path string
}

// Token is an interned, lowercased content fragment: a word in word mode, or
// a 3-character window in trigram mode.
type Token struct {
	Text string
}

// EventSource identifies whether a FileSyncEvent came from the initial walk
// or from a live filesystem notification.
type EventSource int

const (
	SourceInitialSync EventSource = iota
	SourceWatcher
)

func (s EventSource) String() string {
	if s == SourceInitialSync {
		return "initial_sync"
	}
	return "watcher"
}

// EventType is the kind of filesystem change a FileSyncEvent reports.
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileSyncEvent is emitted by the Watcher/Sync stage for every file it
// observes, in logical-clock order.
type FileSyncEvent struct {
	T      uint64
	FA     *FileAddress
	Source EventSource
	Type   EventType
}

// IndexUpdateRequest is the sum type the Indexer pool emits toward the Index
// actor: either UpdateFileContent or RemoveFile.
type IndexUpdateRequest interface {
	isIndexUpdateRequest()
}

// UpdateFileContent carries the deduplicated token set for a (re)indexed
// file, tagged with the logical time of the sync event that produced it.
type UpdateFileContent struct {
	T      uint64
	FA     *FileAddress
	Tokens map[*Token]struct{}
}

func (UpdateFileContent) isIndexUpdateRequest() {}

// RemoveFile tells the Index actor to drop a file with no further I/O.
type RemoveFile struct {
	T  uint64
	FA *FileAddress
}

func (RemoveFile) isIndexUpdateRequest() {}

// StatusUpdateKind enumerates the status events every stage may emit.
type StatusUpdateKind int

const (
	StatusWatcherStarted StatusUpdateKind = iota
	StatusAllFilesDiscovered
	StatusFileUpdated
	StatusWatcherDiscoveredFileDuringInit
)

// StatusUpdate is the single status message type consumed by the Index
// actor to maintain its counters.
type StatusUpdate struct {
	Kind StatusUpdateKind
	At   time.Time
}

// FindOptions carry the raw query string; tokenization and matching are
// mode-specific and live in the index actor / search engine.
type FindOptions struct {
	Query string
}

// StatusResult is the snapshot returned to a StatusRequest.
type StatusResult struct {
	IndexedFiles          int
	KnownTokens           int
	HandledModifications  int
	TotalModifications    int
	WatcherStartTime      *time.Duration
	InitialSyncTime       *time.Duration
	IsBroken              bool
}

// Broken is the fixed status reported between supervisor generations.
func Broken() StatusResult {
	return StatusResult{IsBroken: true}
}

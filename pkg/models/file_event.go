package models

// FileEventKind classifies a coalesced filesystem notification.
type FileEventKind string

const (
	FileCreated  FileEventKind = "created"
	FileModified FileEventKind = "modified"
	FileDeleted  FileEventKind = "deleted"
	FileMoved    FileEventKind = "moved"
)

// FileEvent is one debounced change notification. Within a debounce window
// only the most recent kind for a given path survives.
type FileEvent struct {
	Path  string        `json:"path"`
	Kind  FileEventKind `json:"kind"`
	IsDir bool          `json:"is_dir"`
}

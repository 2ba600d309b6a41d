package database

import "time"

// TrashKind distinguishes files from directories in the trash manifest.
type TrashKind string

const (
	// TrashKindFile marks a trashed regular file.
	TrashKindFile TrashKind = "file"
	// TrashKindDirectory marks a trashed directory tree.
	TrashKindDirectory TrashKind = "directory"
)

// Trash record states. Trashed is the only non-terminal state: a record is
// marked restored when its entity returns to the original path, and the row
// is removed entirely on purge.
const (
	TrashStatusTrashed  = "trashed"
	TrashStatusRestored = "restored"
)

// TrashRecord is one entry in the trash manifest.
type TrashRecord struct {
	ID           string    `json:"id"`
	OriginalPath string    `json:"originalPath"`
	// TrashPath is the entry's name inside the trash root, unique across all
	// records ever written.
	TrashPath string    `json:"trashPath"`
	DeletedAt time.Time `json:"deletedAt"`
	Kind      TrashKind `json:"kind"`
	// Recovered marks records created by reconcile for orphaned trash-side
	// entries whose original path is unknown.
	Recovered bool `json:"recovered,omitempty"`
}

// TaskRecord is one row of annotation task history.
type TaskRecord struct {
	ID            string            `json:"id"`
	DatasetPath   string            `json:"datasetPath"`
	ModelConfigID string            `json:"modelConfigId"`
	Status        string            `json:"status"`
	Processed     int               `json:"processed"`
	Total         int               `json:"total"`
	FileErrors    map[string]string `json:"fileErrors,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

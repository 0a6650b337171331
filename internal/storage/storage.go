package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("object not found")

// StagingPrefix holds uploads and processed artifacts awaiting confirmation.
// PermanentPrefix holds images of completed items.
const (
	StagingPrefix   = "staging/"
	PermanentPrefix = "items/"
)

// ObjectInfo describes a stored object for listing operations.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the blob storage interface. Writes are keyed and
// overwrite-safe; Delete of a missing key is a no-op.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Move(ctx context.Context, src, dst string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Ping(ctx context.Context) error
}

// StagingKey is where a raw upload lands.
func StagingKey(ownerID, itemID uuid.UUID, ext string) string {
	return fmt.Sprintf("%s%s/%s.%s", StagingPrefix, ownerID, itemID, ext)
}

// ProcessedKey is where the pipeline writes its output, still under
// staging until the user confirms.
func ProcessedKey(ownerID, itemID uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s-processed.png", StagingPrefix, ownerID, itemID)
}

// PermanentKey is where a completed item's image lives.
func PermanentKey(itemID uuid.UUID) string {
	return fmt.Sprintf("%s%s.png", PermanentPrefix, itemID)
}

package patent

import (
	"context"
	"time"
)

// Fetcher fetches a patent page and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Downloader streams a remote resource into a local file.
type Downloader interface {
	Download(ctx context.Context, url string, dest string) (int64, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Indexer records the latest extracted record in an external index.
type Indexer interface {
	UpsertRecord(ctx context.Context, record Record, pageHash string) error
}

// Hasher computes digests of fetched pages.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs for processed tasks.
type IDGenerator interface {
	NewID() (string, error)
}

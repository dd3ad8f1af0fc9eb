package storage

import (
	"context"
	"time"

	"flora-crawler/pkg/models"
)

// RecordStore persists extracted records
type RecordStore interface {
	// Save writes rec and returns the identifier the store assigned to it.
	// Failures wrap utils.ErrSave.
	Save(ctx context.Context, rec *models.Record) (string, error)

	// Close releases connections held by the store
	Close() error
}

// FailureLogger records pages that could not be extracted or saved
type FailureLogger interface {
	// Append adds one "<link>,<reason>" line. Failures wrap utils.ErrLogFailure.
	Append(link string, reason models.FailureReason) error
}

// PageCache keeps a local copy of fetched detail pages
type PageCache interface {
	// Write stores markup for link and returns the path written
	Write(link, markup string) (string, error)
}

// PageStore handles page processing state
type PageStore interface {
	// MarkPageVisited records a discovered page as pending.
	// Returns true if the page was newly added, false if it already existed
	MarkPageVisited(pageKey string) (bool, error)

	// CheckPageStatus retrieves the status and details of a page.
	// A page marked visited but never updated reports PageStatusPending with a nil entry
	CheckPageStatus(pageKey string) (status models.PageStatus, entry *models.PageDBEntry, err error)

	// UpdatePageStatus overwrites the stored details for a page
	UpdatePageStatus(pageKey string, entry *models.PageDBEntry) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// GetVisitedCount returns the number of pages in the store
	GetVisitedCount() (int, error)

	// RequeueIncomplete hands every pending or failed page to push.
	// Should be called only during resume
	RequeueIncomplete(ctx context.Context, push func(models.FrontierEntry)) (requeuedCount int, scanErrors int, err error)

	// WriteVisitedLog writes one "<link>,<status>" line per stored page to filePath
	WriteVisitedLog(filePath string) error

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}

// VisitedStore combines the page state interfaces
type VisitedStore interface {
	PageStore
	StoreAdmin
}

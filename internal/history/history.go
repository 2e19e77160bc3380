// Package history records the operations the service performed so users can
// see what they converted, merged, split or compressed.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/filconv/filconv/pkg/logger"
)

var ErrNotFound = errors.New("history entry not found")

// Operation kinds.
const (
	OpConvert    = "convert"
	OpMerge      = "merge"
	OpSplit      = "split"
	OpCompress   = "compress"
	OpEditUpload = "edit-upload"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one performed operation.
type Entry struct {
	ID           string        `bson:"id" json:"id"`
	Operation    string        `bson:"operation" json:"operation"`
	InputNames   []string      `bson:"inputNames" json:"inputNames"`
	OutputName   string        `bson:"outputName,omitempty" json:"outputName,omitempty"`
	OutputFormat string        `bson:"outputFormat,omitempty" json:"outputFormat,omitempty"`
	RemoteJobID  string        `bson:"remoteJobId,omitempty" json:"remoteJobId,omitempty"`
	Status       string        `bson:"status" json:"status"`
	Error        string        `bson:"error,omitempty" json:"error,omitempty"`
	UserID       string        `bson:"userId,omitempty" json:"userId,omitempty"`
	Duration     time.Duration `bson:"duration" json:"duration"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
}

// Repository stores entries. List returns newest first; an empty userID lists
// every entry.
type Repository interface {
	Add(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, userID string, limit int) ([]*Entry, error)
}

// Recorder fills in ids and timestamps and never lets a storage failure
// reach the request that is being recorded.
type Recorder struct {
	Repo Repository
	Now  func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{Repo: repo, Now: time.Now}
}

// Record stores e. A nil Recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.Repo == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.Now()
	}
	if e.Status == "" {
		e.Status = StatusOK
	}
	if err := r.Repo.Add(ctx, &e); err != nil {
		logger.Warnf("history: record %s: %v", e.Operation, err)
	}
}

// Finish builds an entry from an operation's outcome.
func Finish(op string, started time.Time, err error) Entry {
	e := Entry{Operation: op, Duration: time.Since(started), Status: StatusOK}
	if err != nil {
		e.Status = StatusError
		e.Error = err.Error()
	}
	return e
}

// Get returns one entry, but only to the user who performed it.
func (r *Recorder) Get(ctx context.Context, userID, id string) (*Entry, error) {
	if r == nil || r.Repo == nil || id == "" {
		return nil, ErrNotFound
	}
	e, err := r.Repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.UserID == "" || e.UserID != userID {
		return nil, ErrNotFound
	}
	return e, nil
}

func (r *Recorder) List(ctx context.Context, userID string, limit int) ([]*Entry, error) {
	if r == nil || r.Repo == nil {
		return []*Entry{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.Repo.List(ctx, userID, limit)
}

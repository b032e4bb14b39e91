package mutation

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
)

const (
	OpDeleteArtifacts = "delete_artifacts"
	OpSaveTags        = "save_tags"
)

// Recorder receives one observation per mutation attempt.
type Recorder interface {
	RecordMutation(op, outcome string, items int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, string, int, time.Duration) {}

// Coordinator is the only component that calls the persistence service for
// destructive or persisted changes. Local state changes only after a confirmed success.
type Coordinator struct {
	deleter ArtifactDeleter
	saver   RowSaver
	logger  logrus.FieldLogger
	timeout time.Duration
	metrics Recorder
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for mutation events.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout bounds every persistence call. Zero leaves the caller's context as is.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithMetrics sets the recorder for mutation outcomes.
func WithMetrics(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.metrics = r
		}
	}
}

// New creates a coordinator. Either backend may be nil if the corresponding
// operation is never used.
func New(deleter ArtifactDeleter, saver RowSaver, opts ...Option) *Coordinator {
	l := logrus.New()
	l.SetOutput(io.Discard)

	c := &Coordinator{
		deleter: deleter,
		saver:   saver,
		logger:  l,
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result describes a completed mutation.
type Result struct {
	OperationID string       `json:"operation_id"`
	IDs         []string     `json:"ids,omitempty"`
	Removed     int          `json:"removed,omitempty"`
	Rows        []models.Tag `json:"rows,omitempty"`
}

// DeleteArtifacts deletes the view's current selection. On success the nodes and their
// subtrees leave the tree and the selection; on any failure the view is left untouched
// so the selection can be resubmitted.
func (c *Coordinator) DeleteArtifacts(ctx context.Context, view *ArtifactView, level permission.Level) (*Result, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"op": OpDeleteArtifacts, "owner": view.Owner()})

	if !level.CanEdit() {
		log.WithField("level", level.String()).Warn("delete rejected: insufficient permission")
		c.metrics.RecordMutation(OpDeleteArtifacts, outcome(ErrPermissionDenied), 0, time.Since(start))
		return nil, ErrPermissionDenied
	}

	t, ids, err := view.beginDelete()
	if err != nil {
		c.metrics.RecordMutation(OpDeleteArtifacts, outcome(err), 0, time.Since(start))
		return nil, err
	}
	log = log.WithFields(logrus.Fields{"operation_id": t.id, "count": len(ids)})
	log.Info("deleting artifacts")

	callCtx, cancel := c.callContext(ctx)
	callErr := c.deleter.DeleteArtifacts(callCtx, view.Owner(), ids)
	cancel()

	removed, err := view.finishDelete(t, ids, callErr)
	c.metrics.RecordMutation(OpDeleteArtifacts, outcome(err), len(ids), time.Since(start))
	switch {
	case errors.Is(err, ErrStaleResult):
		log.Info("discarding delete result for a changed view")
		return nil, err
	case err != nil:
		log.WithError(callErr).Warn("delete failed")
		return nil, err
	}

	log.WithField("removed", removed).Info("artifacts deleted")
	return &Result{OperationID: t.id, IDs: ids, Removed: removed}, nil
}

// ApplyRowEdits validates and saves the view's edit buffer. A validation error keeps the
// buffer for correction; a persistence failure discards it and keeps the committed rows.
func (c *Coordinator) ApplyRowEdits(ctx context.Context, view *TagView, level permission.Level) (*Result, error) {
	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{"op": OpSaveTags, "owner": view.Owner()})

	if !level.CanEdit() {
		log.WithField("level", level.String()).Warn("tag edit rejected: insufficient permission")
		c.metrics.RecordMutation(OpSaveTags, outcome(ErrPermissionDenied), 0, time.Since(start))
		return nil, ErrPermissionDenied
	}

	t, cleaned, err := view.beginSave()
	if err != nil {
		c.metrics.RecordMutation(OpSaveTags, outcome(err), 0, time.Since(start))
		return nil, err
	}
	log = log.WithFields(logrus.Fields{"operation_id": t.id, "count": len(cleaned)})
	log.Info("saving tags")

	callCtx, cancel := c.callContext(ctx)
	callErr := c.saver.SaveRows(callCtx, view.Owner(), cleaned)
	cancel()

	err = view.finishSave(t, cleaned, callErr)
	c.metrics.RecordMutation(OpSaveTags, outcome(err), len(cleaned), time.Since(start))
	switch {
	case errors.Is(err, ErrStaleResult):
		log.Info("discarding save result for a changed view")
		return nil, err
	case err != nil:
		log.WithError(callErr).Warn("saving tags failed, edit discarded")
		return nil, err
	}

	log.Info("tags saved")
	return &Result{OperationID: t.id, Rows: models.CloneTags(cleaned)}, nil
}

func (c *Coordinator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrPermissionDenied):
		return "denied"
	case errors.Is(err, ErrOperationInProgress):
		return "busy"
	case errors.Is(err, ErrStaleResult):
		return "stale"
	case errors.Is(err, ErrNothingSelected), errors.Is(err, ErrNotEditing):
		return "empty"
	case errors.Is(err, selection.ErrEmptyKey):
		return "invalid"
	default:
		return "failed"
	}
}

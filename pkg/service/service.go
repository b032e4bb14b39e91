package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// ErrViewNotOpen is returned when operating on a run or experiment that has no open view.
var ErrViewNotOpen = errors.New("view is not open")

// ArtifactBackend loads and deletes run artifacts.
type ArtifactBackend interface {
	mutation.ArtifactLoader
	mutation.ArtifactDeleter
}

// TagBackend loads and saves experiment tags.
type TagBackend interface {
	mutation.RowLoader
	mutation.RowSaver
}

// Backends are the external collaborators of the service.
type Backends struct {
	Artifacts   ArtifactBackend
	Tags        TagBackend
	Permissions permission.Provider
}

// Config holds service configuration
type Config struct {
	DataDir            string
	PersistenceTimeout time.Duration
}

// Service is the core console service. It owns one view per user and open run or experiment.
type Service struct {
	Config      *Config
	Coordinator *mutation.Coordinator

	backends Backends
	logger   logrus.FieldLogger

	mu        sync.Mutex
	artifacts map[viewKey]*mutation.ArtifactView
	tags      map[viewKey]*mutation.TagView
}

// viewKey identifies one user's view of a run or experiment.
type viewKey struct {
	user  string
	owner string
}

// Option configures a Service.
type Option func(*options)

type options struct {
	logger  logrus.FieldLogger
	metrics mutation.Recorder
}

// WithLogger sets the service logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the recorder for mutation outcomes.
func WithMetrics(r mutation.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// New creates a new console service
func New(config *Config, backends Backends, opts ...Option) (*Service, error) {
	if backends.Artifacts == nil || backends.Tags == nil || backends.Permissions == nil {
		return nil, errors.New("artifact, tag and permission backends are required")
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.logger = l
	}

	coordinator := mutation.New(backends.Artifacts, backends.Tags,
		mutation.WithLogger(o.logger),
		mutation.WithTimeout(config.PersistenceTimeout),
		mutation.WithMetrics(o.metrics),
	)

	return &Service{
		Config:      config,
		Coordinator: coordinator,
		backends:    backends,
		logger:      o.logger,
		artifacts:   make(map[viewKey]*mutation.ArtifactView),
		tags:        make(map[viewKey]*mutation.TagView),
	}, nil
}

// Level resolves the user's capability on resource. A failed lookup grants nothing.
func (s *Service) Level(ctx context.Context, user, resource string) permission.Level {
	level, err := s.backends.Permissions.Level(ctx, user, resource)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"user": user, "resource": resource}).
			Warn("permission lookup failed, treating as none")
		return permission.LevelNone
	}
	return level
}

// Close releases backends that hold resources.
func (s *Service) Close() error {
	var errs []error
	for _, b := range []any{s.backends.Artifacts, s.backends.Tags, s.backends.Permissions} {
		if c, ok := b.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// RequireView returns ErrPermissionDenied unless user may view resource.
func (s *Service) RequireView(ctx context.Context, user, resource string) error {
	if !s.Level(ctx, user, resource).CanView() {
		return fmt.Errorf("%w: %s may not view %s", mutation.ErrPermissionDenied, user, resource)
	}
	return nil
}

// RequireEdit returns ErrPermissionDenied unless user may edit resource.
func (s *Service) RequireEdit(ctx context.Context, user, resource string) error {
	if !s.Level(ctx, user, resource).CanEdit() {
		return fmt.Errorf("%w: %s may not edit %s", mutation.ErrPermissionDenied, user, resource)
	}
	return nil
}

func (s *Service) loadArtifacts(ctx context.Context, run string) ([]*tree.Node, error) {
	roots, err := s.backends.Artifacts.LoadArtifacts(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("load artifacts of %s: %w", run, err)
	}
	if err := tree.Validate(roots); err != nil {
		return nil, fmt.Errorf("artifacts of %s: %w", run, err)
	}
	return roots, nil
}

// OpenArtifacts returns user's view of a run, loading it on first use.
func (s *Service) OpenArtifacts(ctx context.Context, user, run string) (*mutation.ArtifactView, error) {
	if err := s.RequireView(ctx, user, permission.RunResource(run)); err != nil {
		return nil, err
	}
	if v, err := s.ArtifactView(user, run); err == nil {
		return v, nil
	}

	roots, err := s.loadArtifacts(ctx, run)
	if err != nil {
		return nil, err
	}

	key := viewKey{user: user, owner: run}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.artifacts[key]; ok {
		return v, nil
	}
	v := mutation.NewArtifactView(run, roots, selection.WithLogger(s.logger.WithFields(logrus.Fields{
		"owner": run,
		"user":  user,
	})))
	s.artifacts[key] = v
	return v, nil
}

// ArtifactView returns user's open view of a run.
func (s *Service) ArtifactView(user, run string) (*mutation.ArtifactView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.artifacts[viewKey{user: user, owner: run}]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrViewNotOpen, run)
	}
	return v, nil
}

// RefreshArtifacts reloads a run's tree into user's view. Selected IDs that disappeared are dropped.
func (s *Service) RefreshArtifacts(ctx context.Context, user, run string) (*mutation.ArtifactView, error) {
	v, err := s.OpenArtifacts(ctx, user, run)
	if err != nil {
		return nil, err
	}
	roots, err := s.loadArtifacts(ctx, run)
	if err != nil {
		return nil, err
	}
	v.Replace(roots)
	return v, nil
}

// CloseArtifacts abandons user's view of a run.
func (s *Service) CloseArtifacts(user, run string) {
	key := viewKey{user: user, owner: run}
	s.mu.Lock()
	v, ok := s.artifacts[key]
	delete(s.artifacts, key)
	s.mu.Unlock()
	if ok {
		v.Abandon()
	}
}

// DeleteSelectedArtifacts deletes the selection of user's view of a run. Other users' views
// of the run are given the pruned tree, which drops the deleted IDs from their selections.
func (s *Service) DeleteSelectedArtifacts(ctx context.Context, user, run string) (*mutation.Result, error) {
	v, err := s.ArtifactView(user, run)
	if err != nil {
		return nil, err
	}
	level := s.Level(ctx, user, permission.RunResource(run))
	res, err := s.Coordinator.DeleteArtifacts(ctx, v, level)
	if err != nil {
		return nil, err
	}

	roots := v.Snapshot().Roots
	for _, other := range s.otherArtifactViews(user, run) {
		other.Replace(roots)
	}
	return res, nil
}

func (s *Service) otherArtifactViews(user, run string) []*mutation.ArtifactView {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mutation.ArtifactView
	for key, v := range s.artifacts {
		if key.owner == run && key.user != user {
			out = append(out, v)
		}
	}
	return out
}

func (s *Service) loadTags(ctx context.Context, exp string) ([]models.Tag, error) {
	rows, err := s.backends.Tags.LoadRows(ctx, exp)
	if err != nil {
		return nil, fmt.Errorf("load tags of %s: %w", exp, err)
	}
	return rows, nil
}

// OpenTags returns user's tag view of an experiment, loading it on first use.
func (s *Service) OpenTags(ctx context.Context, user, exp string) (*mutation.TagView, error) {
	if err := s.RequireView(ctx, user, permission.ExperimentResource(exp)); err != nil {
		return nil, err
	}
	if v, err := s.TagView(user, exp); err == nil {
		return v, nil
	}

	rows, err := s.loadTags(ctx, exp)
	if err != nil {
		return nil, err
	}

	key := viewKey{user: user, owner: exp}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.tags[key]; ok {
		return v, nil
	}
	v := mutation.NewTagView(exp, rows)
	s.tags[key] = v
	return v, nil
}

// TagView returns user's open tag view of an experiment.
func (s *Service) TagView(user, exp string) (*mutation.TagView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.tags[viewKey{user: user, owner: exp}]
	if !ok {
		return nil, fmt.Errorf("%w: experiment %s", ErrViewNotOpen, exp)
	}
	return v, nil
}

// RefreshTags reloads the committed tags of an experiment into user's view.
func (s *Service) RefreshTags(ctx context.Context, user, exp string) (*mutation.TagView, error) {
	v, err := s.OpenTags(ctx, user, exp)
	if err != nil {
		return nil, err
	}
	rows, err := s.loadTags(ctx, exp)
	if err != nil {
		return nil, err
	}
	v.Replace(rows)
	return v, nil
}

// CloseTags abandons user's tag view of an experiment.
func (s *Service) CloseTags(user, exp string) {
	key := viewKey{user: user, owner: exp}
	s.mu.Lock()
	v, ok := s.tags[key]
	delete(s.tags, key)
	s.mu.Unlock()
	if ok {
		v.Abandon()
	}
}

// ApplyTagEdits saves the edit buffer of user's view of an experiment. Other users' views
// get the saved rows as their committed rows; their own edit buffers are kept.
func (s *Service) ApplyTagEdits(ctx context.Context, user, exp string) (*mutation.Result, error) {
	v, err := s.TagView(user, exp)
	if err != nil {
		return nil, err
	}
	level := s.Level(ctx, user, permission.ExperimentResource(exp))
	res, err := s.Coordinator.ApplyRowEdits(ctx, v, level)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var others []*mutation.TagView
	for key, other := range s.tags {
		if key.owner == exp && key.user != user {
			others = append(others, other)
		}
	}
	s.mu.Unlock()
	for _, other := range others {
		other.Replace(res.Rows)
	}
	return res, nil
}

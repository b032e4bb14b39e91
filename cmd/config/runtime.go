package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/internal/metrics"
	"github.com/mattsolo1/grove-mlconsole/pkg/mlflow"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/service"
	"github.com/mattsolo1/grove-mlconsole/pkg/session"
	"github.com/mattsolo1/grove-mlconsole/pkg/storage/local"
	s3store "github.com/mattsolo1/grove-mlconsole/pkg/storage/s3"
	"github.com/mattsolo1/grove-mlconsole/pkg/storage/sqlite"
)

// Runtime holds what the commands of one invocation share. Backends are opened lazily
// so that commands like version never touch storage.
type Runtime struct {
	Config *Config
	Logger *logrus.Logger

	svc      *service.Service
	registry *permission.Registry
	mlflow   *mlflow.Client
	sessions *session.Store
}

// NewRuntime creates a runtime for cfg.
func NewRuntime(cfg *Config, logger *logrus.Logger) *Runtime {
	r := &Runtime{}
	r.Init(cfg, logger)
	return r
}

// Init resets the runtime to cfg. Commands are constructed before flags are parsed,
// so the root command fills in a shared Runtime once configuration is known.
func (r *Runtime) Init(cfg *Config, logger *logrus.Logger) {
	*r = Runtime{Config: cfg, Logger: logger}
}

// User returns the acting user.
func (r *Runtime) User() string {
	return r.Config.User
}

// Sessions returns the view state store.
func (r *Runtime) Sessions() *session.Store {
	if r.sessions == nil {
		r.sessions = session.NewStore(r.Config.DataDir)
	}
	return r.sessions
}

// MLflow returns the tracking server client.
func (r *Runtime) MLflow() *mlflow.Client {
	if r.mlflow == nil {
		r.mlflow = mlflow.NewClient(r.Config.MLflow.TrackingURI, r.Logger.WithField("component", "mlflow"))
	}
	return r.mlflow
}

// Registry opens the sqlite permission registry in the data directory.
func (r *Runtime) Registry() (*permission.Registry, error) {
	if r.registry == nil {
		reg, err := permission.NewRegistry(r.Config.DataDir)
		if err != nil {
			return nil, err
		}
		r.registry = reg
	}
	return r.registry, nil
}

// Service builds the console service from the configured backends.
func (r *Runtime) Service(ctx context.Context) (*service.Service, error) {
	if r.svc != nil {
		return r.svc, nil
	}

	artifacts, err := r.artifactBackend(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := r.tagBackend()
	if err != nil {
		return nil, err
	}
	perms, err := r.permissionProvider()
	if err != nil {
		return nil, err
	}

	svc, err := service.New(&service.Config{
		DataDir:            r.Config.DataDir,
		PersistenceTimeout: r.Config.PersistenceTimeout,
	}, service.Backends{
		Artifacts:   artifacts,
		Tags:        tags,
		Permissions: perms,
	}, service.WithLogger(r.Logger), service.WithMetrics(metrics.Recorder{}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}
	r.svc = svc
	return svc, nil
}

func (r *Runtime) artifactBackend(ctx context.Context) (service.ArtifactBackend, error) {
	log := r.Logger.WithField("component", "artifacts")
	switch r.Config.Artifacts.Backend {
	case "s3":
		return s3store.New(ctx, r.Config.Artifacts.S3, log)
	case "mlflow":
		return r.MLflow(), nil
	default:
		root := r.Config.Artifacts.Local.Root
		if root == "" {
			root = filepath.Join(r.Config.DataDir, "artifacts")
		}
		return local.New(root, log), nil
	}
}

func (r *Runtime) tagBackend() (service.TagBackend, error) {
	if r.Config.Tags.Backend == "mlflow" {
		return r.MLflow(), nil
	}
	return sqlite.NewTagStore(r.Config.DataDir)
}

func (r *Runtime) permissionProvider() (permission.Provider, error) {
	if r.Config.Permissions.Backend == "sqlite" {
		return r.Registry()
	}
	return permission.Static{Default: r.Config.Permissions.DefaultLevel}, nil
}

// Close releases every opened backend.
func (r *Runtime) Close() error {
	var errs []error
	if r.svc != nil {
		errs = append(errs, r.svc.Close())
	}
	if r.registry != nil {
		// sql.DB.Close is idempotent, so a registry the service already closed is fine.
		errs = append(errs, r.registry.Close())
	}
	return errors.Join(errs...)
}

package models

import "time"

// Experiment represents an experiment known to the tracking server.
type Experiment struct {
	ID               string    `json:"experiment_id"`
	Name             string    `json:"name"`
	ArtifactLocation string    `json:"artifact_location"`
	LifecycleStage   string    `json:"lifecycle_stage,omitempty"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	LastUpdated      time.Time `json:"last_updated,omitempty"`
	Tags             []Tag     `json:"tags,omitempty"`
}

// IsDeleted reports whether the experiment has been soft-deleted.
func (e *Experiment) IsDeleted() bool {
	return e.LifecycleStage == "deleted"
}

package mlflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
)

type experimentTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type experiment struct {
	ExperimentID     string          `json:"experiment_id"`
	Name             string          `json:"name"`
	ArtifactLocation string          `json:"artifact_location"`
	LifecycleStage   string          `json:"lifecycle_stage"`
	CreationTime     int64           `json:"creation_time"`
	LastUpdateTime   int64           `json:"last_update_time"`
	Tags             []experimentTag `json:"tags"`
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (e experiment) model() models.Experiment {
	out := models.Experiment{
		ID:               e.ExperimentID,
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
		CreatedAt:        millis(e.CreationTime),
		LastUpdated:      millis(e.LastUpdateTime),
	}
	for _, t := range e.Tags {
		out.Tags = append(out.Tags, models.Tag{Key: t.Key, Value: t.Value})
	}
	sort.SliceStable(out.Tags, func(i, j int) bool { return out.Tags[i].Key < out.Tags[j].Key })
	return out
}

// SearchExperiments returns every experiment, active and deleted.
func (c *Client) SearchExperiments(ctx context.Context) ([]models.Experiment, error) {
	type request struct {
		ViewType   string `json:"view_type"`
		MaxResults int    `json:"max_results"`
		PageToken  string `json:"page_token,omitempty"`
	}
	var response struct {
		Experiments   []experiment `json:"experiments"`
		NextPageToken string       `json:"next_page_token"`
	}

	var out []models.Experiment
	req := request{ViewType: "ALL", MaxResults: 1000}
	for {
		response.Experiments, response.NextPageToken = nil, ""
		if err := c.do(ctx, http.MethodPost, apiPrefix+"/experiments/search", nil, req, &response); err != nil {
			return nil, fmt.Errorf("search experiments: %w", err)
		}
		for _, e := range response.Experiments {
			out = append(out, e.model())
		}
		if response.NextPageToken == "" {
			return out, nil
		}
		req.PageToken = response.NextPageToken
	}
}

// GetExperiment fetches one experiment with its tags.
func (c *Client) GetExperiment(ctx context.Context, id string) (*models.Experiment, error) {
	var response struct {
		Experiment experiment `json:"experiment"`
	}
	q := url.Values{"experiment_id": {id}}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/experiments/get", q, nil, &response); err != nil {
		return nil, fmt.Errorf("get experiment %s: %w", id, err)
	}
	e := response.Experiment.model()
	return &e, nil
}

// LoadRows returns the tags of an experiment ordered by key.
func (c *Client) LoadRows(ctx context.Context, owner string) ([]models.Tag, error) {
	e, err := c.GetExperiment(ctx, owner)
	if err != nil {
		return nil, err
	}
	return e.Tags, nil
}

// SaveRows makes the experiment's tags equal to rows: every row is set and every
// existing key not among rows is deleted. MLflow has no batch endpoint for experiment
// tags, so a failure part way leaves the keys written so far.
func (c *Client) SaveRows(ctx context.Context, owner string, rows []models.Tag) error {
	current, err := c.LoadRows(ctx, owner)
	if err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		keep[row.Key] = struct{}{}
		body := map[string]string{"experiment_id": owner, "key": row.Key, "value": row.Value}
		if err := c.do(ctx, http.MethodPost, apiPrefix+"/experiments/set-experiment-tag", nil, body, nil); err != nil {
			return fmt.Errorf("set tag %q: %w", row.Key, err)
		}
	}

	for _, tag := range current {
		if _, ok := keep[tag.Key]; ok {
			continue
		}
		body := map[string]string{"experiment_id": owner, "key": tag.Key}
		if err := c.do(ctx, http.MethodPost, apiPrefix+"/experiments/delete-experiment-tag", nil, body, nil); err != nil {
			return fmt.Errorf("delete tag %q: %w", tag.Key, err)
		}
	}
	return nil
}

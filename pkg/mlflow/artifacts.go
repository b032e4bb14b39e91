package mlflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// ErrUnsupportedArtifactStore is returned when a run's artifacts are not served by the
// tracking server's artifact proxy and so cannot be deleted through it.
var ErrUnsupportedArtifactStore = errors.New("artifact store does not support deletion through mlflow")

type fileInfo struct {
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	FileSize int64  `json:"file_size"`
}

// ListArtifacts returns the full artifact tree of a run, listing directories recursively.
func (c *Client) ListArtifacts(ctx context.Context, runID string) ([]*tree.Node, error) {
	var rootURI string
	var walk func(dir string) ([]*tree.Node, error)
	walk = func(dir string) ([]*tree.Node, error) {
		files, root, err := c.listDir(ctx, runID, dir)
		if err != nil {
			return nil, err
		}
		if rootURI == "" {
			rootURI = root
		}

		nodes := make([]*tree.Node, 0, len(files))
		for _, f := range files {
			n := &tree.Node{
				ID:   f.Path,
				Name: path.Base(f.Path),
				Path: f.Path,
				Kind: tree.KindFile,
				Size: f.FileSize,
			}
			if rootURI != "" {
				n.URI = strings.TrimRight(rootURI, "/") + "/" + f.Path
			}
			if f.IsDir {
				n.Kind = tree.KindDirectory
				children, err := walk(f.Path)
				if err != nil {
					return nil, err
				}
				n.Children = children
			}
			nodes = append(nodes, n)
		}
		sort.SliceStable(nodes, func(i, j int) bool {
			if nodes[i].IsDir() != nodes[j].IsDir() {
				return nodes[i].IsDir()
			}
			return nodes[i].Name < nodes[j].Name
		})
		return nodes, nil
	}

	roots, err := walk("")
	if err != nil {
		return nil, fmt.Errorf("list artifacts of run %s: %w", runID, err)
	}
	return roots, nil
}

func (c *Client) listDir(ctx context.Context, runID, dir string) ([]fileInfo, string, error) {
	var (
		files   []fileInfo
		rootURI string
		token   string
	)
	for {
		var response struct {
			RootURI       string     `json:"root_uri"`
			Files         []fileInfo `json:"files"`
			NextPageToken string     `json:"next_page_token"`
		}
		q := url.Values{"run_id": {runID}}
		if dir != "" {
			q.Set("path", dir)
		}
		if token != "" {
			q.Set("page_token", token)
		}
		if err := c.do(ctx, http.MethodGet, apiPrefix+"/artifacts/list", q, nil, &response); err != nil {
			return nil, "", err
		}
		rootURI = response.RootURI
		files = append(files, response.Files...)
		if response.NextPageToken == "" {
			return files, rootURI, nil
		}
		token = response.NextPageToken
	}
}

// LoadArtifacts implements the artifact loader over ListArtifacts.
func (c *Client) LoadArtifacts(ctx context.Context, owner string) ([]*tree.Node, error) {
	return c.ListArtifacts(ctx, owner)
}

// artifactRoot returns the proxy path of a run's artifacts, e.g. "1/<run>/artifacts".
func (c *Client) artifactRoot(ctx context.Context, runID string) (string, error) {
	var response struct {
		Run struct {
			Info struct {
				ArtifactURI string `json:"artifact_uri"`
			} `json:"info"`
		} `json:"run"`
	}
	q := url.Values{"run_id": {runID}}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/runs/get", q, nil, &response); err != nil {
		return "", fmt.Errorf("get run %s: %w", runID, err)
	}

	u, err := url.Parse(response.Run.Info.ArtifactURI)
	if err != nil || u.Scheme != "mlflow-artifacts" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArtifactStore, response.Run.Info.ArtifactURI)
	}
	return strings.Trim(u.Path, "/"), nil
}

// DeleteArtifacts removes artifacts through the tracking server's artifact proxy
// (mlflow server --serve-artifacts). Directories are removed recursively, so IDs
// below another ID in the list are skipped.
func (c *Client) DeleteArtifacts(ctx context.Context, owner string, ids []string) error {
	root, err := c.artifactRoot(ctx, owner)
	if err != nil {
		return err
	}

	for _, id := range topLevel(ids) {
		p := "/api/2.0/mlflow-artifacts/artifacts/" + escapePath(path.Join(root, id))
		err := c.do(ctx, http.MethodDelete, p, nil, nil, nil)
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("delete artifact %s: %w", id, err)
		}
		c.logger.WithFields(logrus.Fields{"owner": owner, "id": id}).Debug("deleted mlflow artifact")
	}
	return nil
}

// topLevel drops every ID that lies below another ID of the list.
func topLevel(ids []string) []string {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		covered := false
		for p := path.Dir(id); p != "." && p != "/"; p = path.Dir(p) {
			if _, ok := set[p]; ok {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, id)
		}
	}
	return out
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}

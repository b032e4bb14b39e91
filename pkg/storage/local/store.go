// Package local serves run artifacts from a directory tree on disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// ErrOutsideRoot is returned for an artifact ID that resolves outside its run directory.
var ErrOutsideRoot = errors.New("artifact path escapes run root")

// Store keeps the artifacts of each run under <root>/<run>/.
type Store struct {
	root   string
	logger logrus.FieldLogger
}

// New creates a store rooted at root. The directory need not exist yet.
func New(root string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	return &Store{root: root, logger: logger}
}

// Root returns the base directory of the store.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) runDir(owner string) (string, error) {
	if owner == "" || owner != filepath.Base(owner) || owner == "." || owner == ".." {
		return "", fmt.Errorf("invalid run id %q", owner)
	}
	return filepath.Join(s.root, owner), nil
}

// LoadArtifacts returns the artifact tree of a run. Node IDs are slash separated paths
// relative to the run directory. A missing run directory yields an empty tree.
func (s *Store) LoadArtifacts(ctx context.Context, owner string) ([]*tree.Node, error) {
	base, err := s.runDir(owner)
	if err != nil {
		return nil, err
	}

	dirs := map[string]*tree.Node{}
	var roots []*tree.Node

	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == base {
				return fs.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == base {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		node := &tree.Node{
			ID:      id,
			Name:    d.Name(),
			Path:    id,
			Kind:    tree.KindFile,
			ModTime: info.ModTime(),
			URI:     "file://" + filepath.ToSlash(path),
		}
		if d.IsDir() {
			node.Kind = tree.KindDirectory
			node.Children = []*tree.Node{}
			dirs[id] = node
		} else {
			node.Size = info.Size()
		}

		parent := filepath.ToSlash(filepath.Dir(rel))
		if parent == "." {
			roots = append(roots, node)
		} else if p, ok := dirs[parent]; ok {
			p.Children = append(p.Children, node)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk artifacts of %s: %w", owner, err)
	}

	sortNodes(roots)
	s.logger.WithFields(logrus.Fields{"owner": owner, "count": tree.Count(roots)}).Debug("loaded local artifacts")
	return roots, nil
}

// sortNodes orders directories before files, then by name, at every level.
func sortNodes(nodes []*tree.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].IsDir() != nodes[j].IsDir() {
			return nodes[i].IsDir()
		}
		return nodes[i].Name < nodes[j].Name
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// DeleteArtifacts removes every ID, recursively for directories. All IDs are checked
// before anything is removed. An ID that no longer exists is not an error.
func (s *Store) DeleteArtifacts(ctx context.Context, owner string, ids []string) error {
	base, err := s.runDir(owner)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		p, err := resolve(base, id)
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}

	for i, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", ids[i], err)
		}
		s.logger.WithFields(logrus.Fields{"owner": owner, "id": ids[i]}).Debug("removed artifact")
	}
	return nil
}

func resolve(base, id string) (string, error) {
	if id == "" || filepath.IsAbs(id) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, id)
	}
	p := filepath.Join(base, filepath.FromSlash(id))
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, id)
	}
	return p, nil
}

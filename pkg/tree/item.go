package tree

import (
	"errors"
	"fmt"
	"time"
)

// Kind categorizes the entries of an artifact tree.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

var (
	// ErrDuplicateID is returned by Validate when two nodes share an ID.
	ErrDuplicateID = errors.New("duplicate node id")
	// ErrFileChildren is returned by Validate when a file node has children.
	ErrFileChildren = errors.New("file node has children")
)

// Node represents a single entry in a run's artifact tree. It can be a file or a directory.
type Node struct {
	ID      string    `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Path    string    `json:"path" yaml:"path"`
	Kind    Kind      `json:"type" yaml:"type"`
	Size    int64     `json:"size,omitempty" yaml:"size,omitempty"`
	ModTime time.Time `json:"modified,omitempty" yaml:"modified,omitempty"`
	URI     string    `json:"uri,omitempty" yaml:"uri,omitempty"`

	// Children is only meaningful for directories. An empty slice is an empty directory.
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDirectory
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Validate checks that every ID in the forest is unique and that only directories have children.
func Validate(roots []*Node) error {
	seen := make(map[string]struct{})
	var err error
	Walk(roots, func(n *Node) bool {
		if err != nil {
			return false
		}
		if _, ok := seen[n.ID]; ok {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
			return false
		}
		seen[n.ID] = struct{}{}
		if !n.IsDir() && len(n.Children) > 0 {
			err = fmt.Errorf("%w: %s", ErrFileChildren, n.ID)
			return false
		}
		return true
	})
	return err
}

// Package s3 serves run artifacts from an S3 compatible object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

// maxDeleteBatch is the DeleteObjects limit per request.
const maxDeleteBatch = 1000

// Config holds the connection settings of the artifact bucket.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
}

// API is the subset of the S3 client the store uses.
type API interface {
	s3.ListObjectsV2APIClient
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Store keeps run artifacts under <prefix>/<run>/artifacts/.
type Store struct {
	client API
	bucket string
	prefix string
	logger logrus.FieldLogger
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithClient creates a store over an existing client.
func NewWithClient(client API, bucket, prefix string, logger logrus.FieldLogger) *Store {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		logger = l
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// runPrefix returns the key prefix of a run's artifacts, always ending in a slash.
func (s *Store) runPrefix(owner string) string {
	return path.Join(s.prefix, owner, "artifacts") + "/"
}

type object struct {
	key     string
	size    int64
	modTime time.Time
}

func (s *Store) list(ctx context.Context, prefix string) ([]object, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, err)
		}
		for _, o := range page.Contents {
			objects = append(objects, object{
				key:     strings.TrimPrefix(aws.ToString(o.Key), prefix),
				size:    aws.ToInt64(o.Size),
				modTime: aws.ToTime(o.LastModified),
			})
		}
	}
	return objects, nil
}

// LoadArtifacts lists the run's keys and rebuilds the directory structure from them.
func (s *Store) LoadArtifacts(ctx context.Context, owner string) ([]*tree.Node, error) {
	prefix := s.runPrefix(owner)
	objects, err := s.list(ctx, prefix)
	if err != nil {
		return nil, err
	}
	roots := buildTree(objects, "s3://"+s.bucket+"/"+prefix)
	s.logger.WithFields(logrus.Fields{"owner": owner, "objects": len(objects)}).Debug("loaded s3 artifacts")
	return roots, nil
}

// buildTree turns relative keys into a forest. Intermediate directories are synthesised;
// a key ending in "/" is a directory marker and yields an empty directory.
func buildTree(objects []object, uriBase string) []*tree.Node {
	var roots []*tree.Node
	dirs := map[string]*tree.Node{}

	var ensureDir func(id string) *tree.Node
	ensureDir = func(id string) *tree.Node {
		if d, ok := dirs[id]; ok {
			return d
		}
		d := &tree.Node{
			ID:       id,
			Name:     path.Base(id),
			Path:     id,
			Kind:     tree.KindDirectory,
			URI:      uriBase + id + "/",
			Children: []*tree.Node{},
		}
		dirs[id] = d
		if parent := path.Dir(id); parent == "." {
			roots = append(roots, d)
		} else {
			p := ensureDir(parent)
			p.Children = append(p.Children, d)
		}
		return d
	}

	for _, o := range objects {
		if o.key == "" {
			continue
		}
		if strings.HasSuffix(o.key, "/") {
			ensureDir(strings.TrimSuffix(o.key, "/"))
			continue
		}
		n := &tree.Node{
			ID:      o.key,
			Name:    path.Base(o.key),
			Path:    o.key,
			Kind:    tree.KindFile,
			Size:    o.size,
			ModTime: o.modTime,
			URI:     uriBase + o.key,
		}
		if parent := path.Dir(o.key); parent == "." {
			roots = append(roots, n)
		} else {
			p := ensureDir(parent)
			p.Children = append(p.Children, n)
		}
	}

	sortNodes(roots)
	return roots
}

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

// DeleteArtifacts removes every key belonging to the given IDs. A directory ID covers
// every key under it. Any per-key error fails the whole call.
func (s *Store) DeleteArtifacts(ctx context.Context, owner string, ids []string) error {
	prefix := s.runPrefix(owner)
	objects, err := s.list(ctx, prefix)
	if err != nil {
		return err
	}

	keys := expandKeys(objects, ids)
	for _, batch := range batches(keys, maxDeleteBatch) {
		objs := make([]types.ObjectIdentifier, len(batch))
		for i, k := range batch {
			objs[i] = types.ObjectIdentifier{Key: aws.String(prefix + k)}
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objs, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("delete %s: %s: %s (%d keys failed)",
				aws.ToString(e.Key), aws.ToString(e.Code), aws.ToString(e.Message), len(out.Errors))
		}
	}

	s.logger.WithFields(logrus.Fields{"owner": owner, "ids": len(ids), "keys": len(keys)}).Debug("deleted s3 artifacts")
	return nil
}

// expandKeys returns the relative keys matched by ids, in listing order and without repeats.
func expandKeys(objects []object, ids []string) []string {
	var keys []string
	for _, o := range objects {
		for _, id := range ids {
			if o.key == id || strings.HasPrefix(o.key, id+"/") {
				keys = append(keys, o.key)
				break
			}
		}
	}
	return keys
}

func batches(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > size {
		out = append(out, keys[:size:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

// Package source loads manifests from local files and object storage.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"semlayer/internal/config"
	"semlayer/internal/declarative"
	"semlayer/internal/domain"
)

// Source yields the current manifest from some location.
type Source interface {
	Load(ctx context.Context) (*domain.Manifest, error)
	String() string
}

// ObjectReader fetches a single object from a bucket or container.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// New returns the Source for location. Local paths (files or manifest
// directories) need no credentials; s3://, gs:// and az:// URIs are read
// with the credentials in cfg.
func New(ctx context.Context, location string, cfg *config.Config) (Source, error) {
	scheme, bucket, key, err := parseLocation(location)
	if err != nil {
		return nil, err
	}

	var r ObjectReader
	switch scheme {
	case "":
		return &File{Path: location}, nil
	case "s3":
		r, err = NewS3Reader(cfg)
	case "gs":
		r, err = NewGCSReader(ctx, cfg)
	case "az":
		r, err = NewAzureReader(cfg)
	}
	if err != nil {
		return nil, err
	}
	return &Object{URI: location, Bucket: bucket, Key: key, Reader: r}, nil
}

// File reads a manifest file or directory from local disk.
type File struct {
	Path string
}

// Load implements Source.
func (f *File) Load(_ context.Context) (*domain.Manifest, error) {
	return declarative.LoadManifest(f.Path)
}

func (f *File) String() string { return f.Path }

// Object reads a single manifest document from object storage.
type Object struct {
	URI    string
	Bucket string
	Key    string
	Reader ObjectReader
}

// Load implements Source.
func (o *Object) Load(ctx context.Context) (*domain.Manifest, error) {
	data, err := o.Reader.ReadObject(ctx, o.Bucket, o.Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", o.URI, err)
	}
	return declarative.ParseManifest(data, declarative.LoadOptions{})
}

func (o *Object) String() string { return o.URI }

// parseLocation splits an object URI into scheme, bucket and key. Anything
// without a recognised scheme is a local path and yields an empty scheme.
func parseLocation(location string) (scheme, bucket, key string, err error) {
	if location == "" {
		return "", "", "", fmt.Errorf("empty manifest location")
	}
	i := strings.Index(location, "://")
	if i < 0 {
		return "", "", "", nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return "", "", "", fmt.Errorf("parse manifest location %q: %w", location, err)
	}
	switch u.Scheme {
	case "s3", "gs", "az":
	case "file":
		return "", "", "", fmt.Errorf("use a plain path instead of %q", location)
	default:
		return "", "", "", fmt.Errorf("unsupported manifest location scheme %q in %q", u.Scheme, location)
	}

	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" {
		return "", "", "", fmt.Errorf("empty bucket in %q", location)
	}
	if key == "" {
		return "", "", "", fmt.Errorf("empty key in %q", location)
	}
	return u.Scheme, bucket, key, nil
}

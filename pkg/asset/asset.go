// Package asset resolves upload assets to bytes.
//
// Video and audio assets are file references, a Resolver reads them fully into memory before the request starts.
// Images are in-memory values, an ImageEncoder converts them to bytes.
//
// The DefaultResolver supports local paths and bucket URLs:
//   - "/path/to/file.mp4" or "file:///path/to/file.mp4"
//   - "s3://bucket/key?region=us-east-1"
//   - "gs://bucket/key"
//   - "azblob://container/key"
//
// Bucket URLs use the default credentials of the environment, see gocloud.dev/blob.
// Use the s3, gcs and abs subpackages for buckets with explicit credentials.
package asset

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob" // register "azblob://" bucket URLs
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // register "gs://" bucket URLs
	_ "gocloud.dev/blob/s3blob"  // register "s3://" bucket URLs
)

// Resolver reads the referenced asset fully into memory.
type Resolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, error)
}

// ResolverFunc is an adapter to use a function as the Resolver.
type ResolverFunc func(ctx context.Context, ref string) ([]byte, error)

func (f ResolverFunc) Resolve(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

type defaultResolver struct{}

// DefaultResolver resolves local paths and bucket URLs.
func DefaultResolver() Resolver {
	return defaultResolver{}
}

func (defaultResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("asset reference is empty")
	}

	// Local path
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || isWindowsDrive(u.Scheme) {
		return readFile(ref)
	}

	switch u.Scheme {
	case fileblob.Scheme:
		if u.Path == "" {
			return nil, fmt.Errorf(`file url "%s" has no path`, ref)
		}
		bucket, err := fileblob.OpenBucket(filepath.Dir(filepath.FromSlash(u.Path)), nil)
		if err != nil {
			return nil, fmt.Errorf(`cannot open directory of "%s": %w`, ref, err)
		}
		return readAndClose(ctx, bucket, filepath.Base(u.Path))
	case "s3", "gs", "azblob":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf(`bucket url "%s" must contain a bucket and a key`, ref)
		}
		bucketURL := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
		bucket, err := blob.OpenBucket(ctx, bucketURL.String())
		if err != nil {
			return nil, fmt.Errorf(`cannot open bucket "%s": %w`, bucketURL.String(), err)
		}
		return readAndClose(ctx, bucket, key)
	default:
		return nil, fmt.Errorf(`asset reference "%s" has unsupported scheme "%s"`, ref, u.Scheme)
	}
}

type bucketResolver struct {
	bucket *blob.Bucket
}

// BucketResolver resolves references as keys in the bucket.
// The bucket is owned by the caller, it is not closed by the resolver.
func BucketResolver(bucket *blob.Bucket) Resolver {
	return bucketResolver{bucket: bucket}
}

func (r bucketResolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	data, err := r.bucket.ReadAll(ctx, strings.TrimPrefix(ref, "/"))
	if err != nil {
		return nil, fmt.Errorf(`cannot read blob "%s": %w`, ref, err)
	}
	return data, nil
}

func readAndClose(ctx context.Context, bucket *blob.Bucket, key string) (data []byte, err error) {
	defer func() {
		if closeErr := bucket.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	data, err = bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf(`cannot read blob "%s": %w`, key, err)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:forbidigo
	if err != nil {
		return nil, fmt.Errorf(`cannot read file "%s": %w`, path, err)
	}
	return data, nil
}

// isWindowsDrive detects "C:\..." paths parsed as a single letter scheme.
func isWindowsDrive(scheme string) bool {
	return len(scheme) == 1
}

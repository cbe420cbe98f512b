// Package blobdir adapts object storage prefixes to the poller.
//
// A Directory lists the objects directly under a prefix of a gocloud.dev
// bucket. Nested prefixes are not entries. Object keys are relative to the
// prefix and object modification times are reported in Unix milliseconds.
//
// Buckets are opened by URL. Callers register the drivers they need with
// blank imports, for example:
//
//	import _ "gocloud.dev/blob/s3blob"
package blobdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/time/rate"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

// Options configures a Directory.
type Options struct {
	// Limiter throttles List calls. It may be shared by many directories
	// listing the same provider. Nil means unlimited.
	Limiter *rate.Limiter
}

// Directory is a bucket prefix polled like a directory.
type Directory struct {
	bucket  *blob.Bucket
	key     string
	prefix  string
	limiter *rate.Limiter
	owned   bool
}

// IsURL reports whether s names a bucket rather than a local path.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && len(u.Scheme) > 1 && strings.Contains(s, "://")
}

// Open opens the bucket named by rawURL and returns the prefix it points to.
//
// For file:// URLs the whole path is the bucket root. For every other scheme
// the host names the bucket and the path is the prefix, so
// s3://my-bucket/incoming/ lists the objects under incoming/. Query
// parameters are passed to the driver. The directory owns the bucket and
// closes it on Close.
func Open(ctx context.Context, rawURL string, opts Options) (*Directory, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	bucketURL, prefix := splitURL(u)
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot open bucket %s", bucketURL), err).
			WithDetail("url", rawURL)
	}

	d, err := New(bucket, keyOf(u, prefix), prefix, opts)
	if err != nil {
		_ = bucket.Close()
		return nil, err
	}
	d.owned = true
	return d, nil
}

// Key returns the key Open would give the directory for rawURL without
// opening the bucket.
func Key(rawURL string) (string, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return "", err
	}
	_, prefix := splitURL(u)
	return keyOf(u, prefix), nil
}

// New returns the prefix of an already opened bucket. key identifies the
// directory in events and persisted state. The caller keeps ownership of
// bucket.
func New(bucket *blob.Bucket, key, prefix string, opts Options) (*Directory, error) {
	if bucket == nil {
		return nil, apperrors.ValidationError("bucket must not be nil", nil)
	}
	if key == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath, "directory key must not be empty", nil)
	}
	return &Directory{
		bucket:  bucket,
		key:     key,
		prefix:  normalizePrefix(prefix),
		limiter: opts.Limiter,
	}, nil
}

// Resolver returns a poller.Resolver opening persisted bucket keys with opts.
// Directories it opens own their buckets; closer receives each of them so the
// caller can close them when done.
func Resolver(ctx context.Context, opts Options, closer func(io.Closer)) poller.Resolver {
	return func(key string) (poller.Directory, error) {
		d, err := Open(ctx, key, opts)
		if err != nil {
			return nil, err
		}
		if closer != nil {
			closer(d)
		}
		return d, nil
	}
}

// Key returns the bucket URL of the directory.
func (d *Directory) Key() string { return d.key }

// Prefix returns the listed prefix, empty or ending in "/".
func (d *Directory) Prefix() string { return d.prefix }

func (d *Directory) String() string { return d.key }

// List implements poller.Directory.
func (d *Directory) List(ctx context.Context) ([]poller.Entry, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, poller.RetryLater(d.key, "listing rate limit reached", err)
		}
	}

	var entries []poller.Entry
	iter := d.bucket.List(&blob.ListOptions{Prefix: d.prefix, Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, d.listError(ctx, err)
		}
		if obj.IsDir || obj.Key == d.prefix {
			continue
		}
		name := strings.TrimPrefix(obj.Key, d.prefix)
		if name == "" {
			continue
		}
		var mtime int64
		if !obj.ModTime.IsZero() {
			mtime = obj.ModTime.UnixMilli()
		}
		entries = append(entries, &Entry{name: name, modTime: mtime, size: obj.Size})
	}
	return entries, nil
}

// Close closes the bucket if the directory opened it.
func (d *Directory) Close() error {
	if !d.owned {
		return nil
	}
	return d.bucket.Close()
}

// listError classifies a provider error for the poller.
func (d *Directory) listError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	msg := fmt.Sprintf("cannot list %s", d.key)
	switch gcerrors.Code(err) {
	case gcerrors.ResourceExhausted:
		return poller.RetryLater(d.key, msg, err)
	case gcerrors.InvalidArgument, gcerrors.Unimplemented:
		return apperrors.New(apperrors.ErrCodeInvalidPath, msg, err).
			WithDetail("directory", d.key)
	default:
		return apperrors.IOError(msg, err).
			WithDetail("directory", d.key)
	}
}

// Entry is one object under the prefix. Object metadata is captured by the
// listing, so ModTime never fails.
type Entry struct {
	name    string
	modTime int64
	size    int64
}

// Name returns the object key relative to the prefix.
func (e *Entry) Name() string { return e.name }

// IsDir is always false.
func (e *Entry) IsDir() bool { return false }

// Size returns the object size in bytes.
func (e *Entry) Size() int64 { return e.size }

// ModTime returns the object modification time in Unix milliseconds, or 0
// when the provider did not report one.
func (e *Entry) ModTime() (int64, error) { return e.modTime, nil }

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidPath,
			fmt.Sprintf("%q is not a bucket URL", rawURL), err).
			WithSuggestion("use a URL such as s3://bucket/prefix/ or file:///path")
	}
	return u, nil
}

func splitURL(u *url.URL) (bucketURL, prefix string) {
	if u.Scheme == "file" {
		return u.String(), ""
	}
	bucketURL = u.Scheme + "://" + u.Host
	if u.RawQuery != "" {
		bucketURL += "?" + u.RawQuery
	}
	return bucketURL, strings.TrimPrefix(u.Path, "/")
}

func keyOf(u *url.URL, prefix string) string {
	if u.Scheme == "file" {
		k := url.URL{Scheme: u.Scheme, Host: u.Host, Path: strings.TrimSuffix(u.Path, "/")}
		return k.String()
	}
	k := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/" + normalizePrefix(prefix), RawQuery: u.RawQuery}
	return k.String()
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

package cmd

import (
	"context"
	"errors"
	"io"
	"sync"

	// Bucket drivers for blobdir URLs.
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/dirpoll/internal/blobdir"
	"github.com/Aman-CERP/dirpoll/internal/config"
	"github.com/Aman-CERP/dirpoll/internal/fsdir"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

// directoryOpener turns command line and config entries into directories.
// Entries with a URL scheme are buckets, everything else is a local path.
// Buckets stay open until Close, including those no longer watched.
type directoryOpener struct {
	openBucket poller.Resolver

	mu      sync.Mutex
	closers []io.Closer
}

func newDirectoryOpener(ctx context.Context, bc config.BlobConfig) *directoryOpener {
	var opts blobdir.Options
	if bc.RPS > 0 {
		burst := bc.Burst
		if burst < 1 {
			burst = 1
		}
		opts.Limiter = rate.NewLimiter(rate.Limit(bc.RPS), burst)
	}
	o := &directoryOpener{}
	o.openBucket = blobdir.Resolver(ctx, opts, o.track)
	return o
}

// key returns the directory key of entry without opening it.
func (o *directoryOpener) key(entry string) (string, error) {
	if blobdir.IsURL(entry) {
		return blobdir.Key(entry)
	}
	d, err := fsdir.New(entry)
	if err != nil {
		return "", err
	}
	return d.Key(), nil
}

// open returns the directory for entry.
func (o *directoryOpener) open(entry string) (poller.Directory, error) {
	if !blobdir.IsURL(entry) {
		return fsdir.New(entry)
	}
	return o.openBucket(entry)
}

// openAll opens every entry, skipping repeated keys.
func (o *directoryOpener) openAll(entries []string) ([]poller.Directory, error) {
	seen := make(map[string]struct{}, len(entries))
	dirs := make([]poller.Directory, 0, len(entries))
	for _, entry := range entries {
		key, err := o.key(entry)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		d, err := o.open(entry)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, nil
}

// resolve is a poller.Resolver for persisted keys.
func (o *directoryOpener) resolve(key string) (poller.Directory, error) {
	return o.open(key)
}

func (o *directoryOpener) track(c io.Closer) {
	o.mu.Lock()
	o.closers = append(o.closers, c)
	o.mu.Unlock()
}

// Close closes every bucket opened so far.
func (o *directoryOpener) Close() error {
	o.mu.Lock()
	closers := o.closers
	o.closers = nil
	o.mu.Unlock()

	var errs []error
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

package download

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/transport"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxRetries is the number of retries after a failed transfer.
const DefaultMaxRetries = 3

// Transfer describes the download of one remote file.
type Transfer struct {
	Source     transport.Dialer
	RemoteDir  string // may be empty if RemoteName is an absolute URL
	RemoteName string
	LocalDir   string
	LocalName  string // defaults to the remote name, without compression suffix if decompressed
	Decompress bool
}

// remoteBase returns the base name of the remote file, without any URL query.
func (t Transfer) remoteBase() string {
	if u, err := url.Parse(t.RemoteName); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(t.RemoteName)
}

// downloadPath returns the path the remote file is written to before decompression.
func (t Transfer) downloadPath() string {
	if t.LocalName != "" && !t.Decompress {
		return filepath.Join(t.LocalDir, t.LocalName)
	}
	return filepath.Join(t.LocalDir, t.remoteBase())
}

// LocalPath returns the final path of the file.
func (t Transfer) LocalPath() string {
	switch {
	case t.LocalName != "":
		return filepath.Join(t.LocalDir, t.LocalName)
	case t.Decompress:
		return filepath.Join(t.LocalDir, transport.DecompressedName(t.remoteBase()))
	default:
		return filepath.Join(t.LocalDir, t.remoteBase())
	}
}

func (t Transfer) String() string {
	switch {
	case t.RemoteDir == "":
		return t.RemoteName
	case strings.Contains(t.RemoteDir, "://"):
		return strings.TrimSuffix(t.RemoteDir, "/") + "/" + t.RemoteName
	default:
		return path.Join(t.RemoteDir, t.RemoteName)
	}
}

// ExpBackoff returns a random duration between 0 and 2^retry seconds.
func ExpBackoff(retry int) time.Duration {
	return time.Duration(rand.Float64() * math.Pow(2, float64(retry)) * float64(time.Second))
}

// Fetcher downloads files, retrying failed transfers with a randomized exponential backoff.
type Fetcher struct {
	// MaxRetries is the number of retries, i.e. a file is tried MaxRetries+1 times.
	MaxRetries int

	// Backoff returns the pause before the given retry, starting with 1. Defaults to ExpBackoff.
	Backoff func(retry int) time.Duration

	Log log.FieldLogger
}

// NewFetcher returns a Fetcher with ExpBackoff.
func NewFetcher(maxRetries int, logger log.FieldLogger) *Fetcher {
	return &Fetcher{MaxRetries: maxRetries, Backoff: ExpBackoff, Log: logger}
}

func (f *Fetcher) logger() log.FieldLogger {
	if f.Log == nil {
		return log.StandardLogger()
	}
	return f.Log
}

// Fetch downloads the file described by t and returns its local path.
// If the file is already present locally, nothing is transferred. On failure no partial file is left.
// A missing remote path is not retried and the error wraps transport.ErrPathNotFound,
// all other failures are retried and finally returned wrapping transport.ErrTransfer.
func (f *Fetcher) Fetch(ctx context.Context, t Transfer) (string, error) {
	logger := f.logger().WithFields(log.Fields{"file": t.RemoteName, "dir": t.RemoteDir})

	localPath := t.LocalPath()
	if fileExists(localPath) {
		logger.Infof("File already present in %s", t.LocalDir)
		return localPath, nil
	}
	if err := os.MkdirAll(t.LocalDir, 0o755); err != nil {
		return "", err
	}

	dlPath := t.downloadPath()
	var err error
	for retry := 0; ; retry++ {
		logger.WithField("attempt", retry+1).Info("Attempting download")
		if err = f.attempt(ctx, t, dlPath, localPath); err == nil {
			logger.Infof("Downloaded to %s", localPath)
			return localPath, nil
		}
		if !retryable(ctx, err) || retry >= f.MaxRetries {
			break
		}

		logger.WithField("attempt", retry+1).Debugf("Received an error while trying to download, retrying: %v", err)
		if errSleep := sleep(ctx, f.backoff(retry+1)); errSleep != nil {
			err = errSleep
			break
		}
	}

	removeArtifacts(dlPath, localPath)
	if !retryable(ctx, err) {
		return "", fmt.Errorf("fetch %s: %w", t, err)
	}
	logger.Warnf("Failed to download and reached maximum retry count (%d)", f.MaxRetries)
	return "", fmt.Errorf("%w: %s after %d attempts: %w", transport.ErrTransfer, t, f.MaxRetries+1, err)
}

// attempt makes one transfer over a new session.
func (f *Fetcher) attempt(ctx context.Context, t Transfer, dlPath, localPath string) error {
	sess, err := t.Source.Dial(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if t.RemoteDir != "" {
		if err := sess.ChangeDir(ctx, t.RemoteDir); err != nil {
			return err
		}
	}
	if err := sess.Fetch(ctx, t.RemoteName, dlPath); err != nil {
		return err
	}
	if !t.Decompress {
		return nil
	}

	out, err := transport.Decompress(ctx, dlPath)
	if err != nil {
		return err
	}
	if out != localPath {
		return os.Rename(out, localPath)
	}
	return nil
}

func (f *Fetcher) backoff(retry int) time.Duration {
	if f.Backoff == nil {
		return ExpBackoff(retry)
	}
	return f.Backoff(retry)
}

// FetchAll downloads the transfers with at most workers concurrent transfers and returns the local paths
// in the order of transfers. The first failure cancels the remaining transfers.
func (f *Fetcher) FetchAll(ctx context.Context, transfers []Transfer, workers int) ([]string, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	paths := make([]string, len(transfers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, t := range transfers {
		i, t := i, t
		g.Go(func() error {
			p, err := f.Fetch(ctx, t)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, transport.ErrPathNotFound) &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func removeArtifacts(paths ...string) {
	for _, p := range paths {
		os.Remove(p)
		os.Remove(p + ".part")
	}
}

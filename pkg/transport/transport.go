//go:generate mockgen -destination=./mocks/transport.go . Session,Dialer

// Package transport provides sessions to remote GNSS archives: FTP over explicit TLS for CDDIS
// and HTTPS for the gnss-data API and static file locations.
package transport

import (
	"context"
	"errors"
	"os"
)

// errors
var (
	// ErrPathNotFound is returned if a remote directory or file does not exist.
	ErrPathNotFound = errors.New("transport: path not found")

	// ErrTransfer is returned if a file could not be transferred.
	ErrTransfer = errors.New("transport: transfer failed")

	// ErrListingUnsupported is returned by sessions that can not list directories.
	ErrListingUnsupported = errors.New("transport: listing not supported")
)

// Session is a connection to a remote archive. A Session is not safe for concurrent use.
type Session interface {
	// ChangeDir changes the current remote directory. It returns ErrPathNotFound if the directory does not exist.
	ChangeDir(ctx context.Context, dir string) error

	// List returns the filenames in the current remote directory.
	List(ctx context.Context) ([]string, error)

	// Fetch downloads the remote file name from the current directory to localPath.
	// No file is left at localPath if Fetch fails.
	Fetch(ctx context.Context, name, localPath string) error

	// Close ends the session.
	Close() error
}

// Dialer opens sessions to one remote archive.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// partSuffix is appended to files while they are written.
const partSuffix = ".part"

// commit moves a completely written part file to its final location.
func commit(partPath, localPath string) error {
	if err := os.Rename(partPath, localPath); err != nil {
		os.Remove(partPath)
		return err
	}
	return nil
}

package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"os"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
	log "github.com/sirupsen/logrus"
)

const (
	// CDDISHost is the FTPS server of the NASA Crustal Dynamics Data Information System.
	CDDISHost = "gdc.cddis.eosdis.nasa.gov"

	defaultFTPPort    = "21"
	defaultFTPTimeout = 30 * time.Second
)

// FTPDialer dials FTP servers using explicit TLS and anonymous login.
type FTPDialer struct {
	// Host is the server name, optionally with port. Defaults to CDDISHost.
	Host string

	// Timeout for connecting and each command, defaults to 30s.
	Timeout time.Duration

	// TLSConfig overrides the default TLS configuration. If nil, the server name is verified.
	TLSConfig *tls.Config

	// DisableTLS dials plain FTP. For tests only.
	DisableTLS bool

	Log log.FieldLogger
}

// NewCDDISDialer returns a dialer for the CDDIS archive.
func NewCDDISDialer() *FTPDialer {
	return &FTPDialer{Host: CDDISHost}
}

func (d *FTPDialer) addr() string {
	host := d.Host
	if host == "" {
		host = CDDISHost
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, defaultFTPPort)
	}
	return host
}

// Dial connects to the server and logs in anonymously.
func (d *FTPDialer) Dial(ctx context.Context) (Session, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultFTPTimeout
	}
	logger := d.Log
	if logger == nil {
		logger = log.StandardLogger()
	}

	addr := d.addr()
	opts := []ftp.DialOption{ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx)}
	if !d.DisableTLS {
		tlsConf := d.TLSConfig
		if tlsConf == nil {
			host, _, _ := net.SplitHostPort(addr)
			tlsConf = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		}
		opts = append(opts, ftp.DialWithExplicitTLS(tlsConf))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := conn.Login("anonymous", "anonymous"); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("login to %s: %w", addr, err)
	}
	logger.WithField("host", addr).Debug("FTP session opened")

	return &ftpSession{conn: conn, log: logger}, nil
}

type ftpSession struct {
	conn *ftp.ServerConn
	dir  string
	log  log.FieldLogger
}

func (s *ftpSession) ChangeDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.ChangeDir(dir); err != nil {
		return mapFTPError(err, dir)
	}
	s.dir = dir
	return nil
}

func (s *ftpSession) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.conn.NameList("")
	if err != nil {
		return nil, mapFTPError(err, s.dir)
	}

	// some servers return full paths
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, path.Base(e))
	}
	s.log.WithFields(log.Fields{"dir": s.dir, "entries": len(names)}).Debug("Listed remote directory")
	return names, nil
}

func (s *ftpSession) Fetch(ctx context.Context, name, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := s.conn.Retr(name)
	if err != nil {
		return mapFTPError(err, path.Join(s.dir, name))
	}
	defer resp.Close()

	return writeFile(ctx, resp, localPath)
}

func (s *ftpSession) Close() error {
	return s.conn.Quit()
}

// mapFTPError maps the FTP reply "550 Requested action not taken" to ErrPathNotFound.
func mapFTPError(err error, p string) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code == ftp.StatusFileUnavailable {
		return fmt.Errorf("%w: %s: %v", ErrPathNotFound, p, err)
	}
	return fmt.Errorf("%s: %w", p, err)
}

// writeFile copies r into a part file and moves it to localPath on success.
func writeFile(ctx context.Context, r io.Reader, localPath string) error {
	partPath := localPath + partSuffix
	f, err := os.Create(partPath)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if errClose := f.Close(); err == nil {
		err = errClose
	}
	if err != nil {
		os.Remove(partPath)
		return err
	}
	return commit(partPath, localPath)
}

// ctxReader stops reading once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultUserAgent is the HTTP User-Agent if none is configured.
const DefaultUserAgent = "gnssfetch"

// NewHTTPClient returns an HTTP client with the connection timeouts used for all HTTPS sources.
// The client's Transport keeps cached connections, so it should be reused.
func NewHTTPClient(unsafeSSL bool) *http.Client {
	// Transport see http DefaultTransport settings
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: unsafeSSL,
		},
		Proxy:                 http.ProxyFromEnvironment,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second, // e.g. for using the wrong proxy!
	}
	return &http.Client{Transport: tr}
}

// HTTPDialer opens sessions to an HTTP(S) server. Directories and filenames are resolved
// relative to BaseURL, so absolute URLs can be fetched as well.
type HTTPDialer struct {
	// BaseURL should be of the form "https://host/path/".
	BaseURL string

	// UserAgent is the http User Agent, defaults to DefaultUserAgent.
	UserAgent string

	// Client defaults to NewHTTPClient(false).
	Client *http.Client

	Log log.FieldLogger
}

// Dial returns a session. No connection is made until a file is fetched.
func (d *HTTPDialer) Dial(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "" && base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported protocol scheme: %s, your address must start with http:// or https://", base.Scheme)
	}

	s := &httpSession{base: base, userAgent: d.UserAgent, client: d.Client, log: d.Log}
	if s.userAgent == "" {
		s.userAgent = DefaultUserAgent
	}
	if s.client == nil {
		s.client = NewHTTPClient(false)
	}
	if s.log == nil {
		s.log = log.StandardLogger()
	}
	return s, nil
}

type httpSession struct {
	base      *url.URL
	userAgent string
	client    *http.Client
	log       log.FieldLogger
}

// ChangeDir only moves the base for resolving filenames, the existence of the directory is not checked.
func (s *httpSession) ChangeDir(ctx context.Context, dir string) error {
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}
	ref, err := url.Parse(dir)
	if err != nil {
		return err
	}
	s.base = s.base.ResolveReference(ref)
	return nil
}

func (s *httpSession) List(ctx context.Context) ([]string, error) {
	return nil, ErrListingUnsupported
}

func (s *httpSession) Fetch(ctx context.Context, name, localPath string) error {
	ref, err := url.Parse(name)
	if err != nil {
		return err
	}
	u := s.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrPathNotFound, u.Redacted())
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("GET %s: %s", u.Redacted(), resp.Status)
	}

	s.log.WithField("url", u.Redacted()).Debug("Fetching")
	return writeFile(ctx, resp.Body, localPath)
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

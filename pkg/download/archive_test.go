package download

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/de-bkg/gnssfetch/pkg/transport"
	"github.com/mholt/archiver/v3"
	"github.com/stretchr/testify/require"
)

// fakeArchive is an in-memory remote archive.
type fakeArchive struct {
	mu      sync.Mutex
	dirs    map[string]map[string][]byte
	dials   int
	fetched []string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{dirs: map[string]map[string][]byte{}}
}

func (a *fakeArchive) put(dir, name string, content []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dirs[dir] == nil {
		a.dirs[dir] = map[string][]byte{}
	}
	a.dirs[dir][name] = content
}

func (a *fakeArchive) Dial(ctx context.Context) (transport.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dials++
	return &fakeSession{archive: a}, nil
}

func (a *fakeArchive) fetchedNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.fetched...)
}

type fakeSession struct {
	archive *fakeArchive
	dir     string
}

func (s *fakeSession) ChangeDir(ctx context.Context, dir string) error {
	a := s.archive
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.dirs[dir]; ok {
		s.dir = dir
		return nil
	}
	for d := range a.dirs {
		if strings.HasPrefix(d, strings.TrimSuffix(dir, "/")+"/") {
			s.dir = dir
			return nil
		}
	}
	return fmt.Errorf("%w: %s", transport.ErrPathNotFound, dir)
}

func (s *fakeSession) List(ctx context.Context) ([]string, error) {
	a := s.archive
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := map[string]bool{}
	for name := range a.dirs[s.dir] {
		seen[name] = true
	}
	prefix := strings.TrimSuffix(s.dir, "/") + "/"
	for d := range a.dirs {
		if rest, ok := strings.CutPrefix(d, prefix); ok {
			seen[strings.Split(rest, "/")[0]] = true
		}
	}
	var names []string
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeSession) Fetch(ctx context.Context, name, localPath string) error {
	a := s.archive
	a.mu.Lock()
	dir := s.dir
	if dir == "" {
		dir, name = path.Split(name)
	}
	content, ok := a.dirs[dir][name]
	if ok {
		a.fetched = append(a.fetched, name)
	}
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", transport.ErrPathNotFound, path.Join(dir, name))
	}
	return os.WriteFile(localPath, content, 0o644)
}

func (s *fakeSession) Close() error { return nil }

func gzipped(t *testing.T, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, archiver.NewGz().Compress(bytes.NewReader(content), &buf))
	return buf.Bytes()
}

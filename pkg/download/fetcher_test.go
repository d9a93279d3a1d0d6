package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/de-bkg/gnssfetch/pkg/transport"
	mock_transport "github.com/de-bkg/gnssfetch/pkg/transport/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func noBackoff(int) time.Duration { return 0 }

func TestTransfer_LocalPath(t *testing.T) {
	tests := []struct {
		name     string
		transfer Transfer
		want     string
	}{
		{name: "plain", transfer: Transfer{RemoteName: "igs20.atx", LocalDir: "/data"}, want: "/data/igs20.atx"},
		{name: "decompressed", transfer: Transfer{RemoteName: "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz", LocalDir: "/data", Decompress: true}, want: "/data/COD0OPSFIN_20230010000_01D_05M_ORB.SP3"},
		{name: "legacy", transfer: Transfer{RemoteName: "igs22P2237.snx.Z", LocalDir: "/data", Decompress: true}, want: "/data/igs22P2237.snx"},
		{name: "local name", transfer: Transfer{RemoteName: "https://example.com/a/ALIC00AUS_R_20230010000_01D_30S_MO.crx.gz?sig=1", LocalDir: "/data", LocalName: "ALIC00AUS_R_20230010000_01D_30S_MO.rnx"}, want: "/data/ALIC00AUS_R_20230010000_01D_30S_MO.rnx"},
		{name: "url", transfer: Transfer{RemoteName: "https://example.com/a/OLOAD_GO.BLQ?x=y", LocalDir: "/data"}, want: "/data/OLOAD_GO.BLQ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.transfer.LocalPath())
		})
	}
}

func TestTransfer_String(t *testing.T) {
	tests := []struct {
		name     string
		transfer Transfer
		want     string
	}{
		{name: "ftp", transfer: Transfer{RemoteDir: "/gnss/products/2243", RemoteName: "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz"}, want: "/gnss/products/2243/COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz"},
		{name: "url dir", transfer: Transfer{RemoteDir: ATXBaseURL, RemoteName: "igs20.atx"}, want: "https://files.igs.org/pub/station/general/igs20.atx"},
		{name: "url dir without slash", transfer: Transfer{RemoteDir: "https://files.igs.org/pub", RemoteName: "igs20.atx"}, want: "https://files.igs.org/pub/igs20.atx"},
		{name: "absolute url", transfer: Transfer{RemoteName: "https://example.com/a/ALIC.crx.gz"}, want: "https://example.com/a/ALIC.crx.gz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.transfer.String())
		})
	}
}

func TestExpBackoff(t *testing.T) {
	for retry := 1; retry <= 4; retry++ {
		for i := 0; i < 20; i++ {
			d := ExpBackoff(retry)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, time.Duration(1<<retry)*time.Second)
		}
	}
}

func TestFetcher_SkipIfPresent(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_transport.NewMockDialer(ctrl) // no calls expected
	dir := t.TempDir()

	local := filepath.Join(dir, "COD0OPSFIN_20230010000_01D_05M_ORB.SP3")
	require.NoError(t, os.WriteFile(local, []byte("present"), 0o644))

	f := &Fetcher{MaxRetries: 3, Backoff: noBackoff}
	got, err := f.Fetch(context.Background(), Transfer{
		Source:     dialer,
		RemoteDir:  "/gnss/products/2243",
		RemoteName: "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz",
		LocalDir:   dir,
		Decompress: true,
	})
	require.NoError(t, err)
	assert.Equal(t, local, got)

	b, _ := os.ReadFile(local)
	assert.Equal(t, "present", string(b))
}

func TestFetcher_RetryExhaustion(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_transport.NewMockDialer(ctrl)
	sess := mock_transport.NewMockSession(ctrl)
	dir := t.TempDir()
	errReset := errors.New("connection reset by peer")

	const maxRetries = 2
	dialer.EXPECT().Dial(gomock.Any()).Return(sess, nil).Times(maxRetries + 1)
	sess.EXPECT().ChangeDir(gomock.Any(), "/gnss/products/2243").Return(nil).Times(maxRetries + 1)
	sess.EXPECT().Fetch(gomock.Any(), "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, localPath string) error {
			// leave a partial file behind
			_ = os.WriteFile(localPath, []byte("partial"), 0o644)
			return errReset
		}).Times(maxRetries + 1)
	sess.EXPECT().Close().Return(nil).Times(maxRetries + 1)

	var backoffs []int
	f := &Fetcher{MaxRetries: maxRetries, Backoff: func(retry int) time.Duration {
		backoffs = append(backoffs, retry)
		return 0
	}}
	_, err := f.Fetch(context.Background(), Transfer{
		Source:     dialer,
		RemoteDir:  "/gnss/products/2243",
		RemoteName: "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz",
		LocalDir:   dir,
		Decompress: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrTransfer)
	assert.ErrorIs(t, err, errReset)
	assert.Contains(t, err.Error(), "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz")
	assert.Contains(t, err.Error(), "/gnss/products/2243")
	assert.Equal(t, []int{1, 2}, backoffs)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial artifacts")
}

func TestFetcher_DialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_transport.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("i/o timeout")).Times(4)

	f := &Fetcher{MaxRetries: 3, Backoff: noBackoff}
	_, err := f.Fetch(context.Background(), Transfer{Source: dialer, RemoteDir: "/gnss/products/2243", RemoteName: "x.sp3", LocalDir: t.TempDir()})
	assert.ErrorIs(t, err, transport.ErrTransfer)
}

func TestFetcher_PathNotFoundNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_transport.NewMockDialer(ctrl)
	sess := mock_transport.NewMockSession(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(sess, nil).Times(1)
	sess.EXPECT().ChangeDir(gomock.Any(), "/gnss/products/9999").Return(transport.ErrPathNotFound).Times(1)
	sess.EXPECT().Close().Return(nil).Times(1)

	f := &Fetcher{MaxRetries: 3, Backoff: noBackoff}
	_, err := f.Fetch(context.Background(), Transfer{Source: dialer, RemoteDir: "/gnss/products/9999", RemoteName: "x.sp3", LocalDir: t.TempDir()})
	assert.ErrorIs(t, err, transport.ErrPathNotFound)
	assert.False(t, errors.Is(err, transport.ErrTransfer))
}

func TestFetcher_RecoversAndDecompresses(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_transport.NewMockDialer(ctrl)
	sess := mock_transport.NewMockSession(ctrl)
	dir := t.TempDir()
	content := []byte("#dP2023  1  1  0  0  0.00000000\n")

	dialer.EXPECT().Dial(gomock.Any()).Return(sess, nil).Times(2)
	sess.EXPECT().ChangeDir(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	sess.EXPECT().Close().Return(nil).Times(2)
	gomock.InOrder(
		sess.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("426 connection closed")),
		sess.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, localPath string) error {
				return os.WriteFile(localPath, gzipped(t, content), 0o644)
			}),
	)

	f := &Fetcher{MaxRetries: 3, Backoff: noBackoff}
	got, err := f.Fetch(context.Background(), Transfer{
		Source:     dialer,
		RemoteDir:  "/gnss/products/2243",
		RemoteName: "COD0OPSFIN_20230010000_01D_05M_ORB.SP3.gz",
		LocalDir:   dir,
		Decompress: true,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "COD0OPSFIN_20230010000_01D_05M_ORB.SP3"), got)
	b, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, content, b)
	assert.NoFileExists(t, got+".gz")
}

func TestFetcher_Canceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_transport.NewMockDialer(ctrl)
	ctx, cancel := context.WithCancel(context.Background())

	dialer.EXPECT().Dial(gomock.Any()).DoAndReturn(func(context.Context) (transport.Session, error) {
		cancel()
		return nil, context.Canceled
	}).Times(1)

	f := &Fetcher{MaxRetries: 3, Backoff: noBackoff}
	_, err := f.Fetch(ctx, Transfer{Source: dialer, RemoteName: "x.sp3", LocalDir: t.TempDir()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcher_FetchAll(t *testing.T) {
	archive := newFakeArchive()
	archive.put("/gnss/data/daily/2023/brdc", "brdc0010.23n.gz", gzipped(t, []byte("nav 1")))
	archive.put("/gnss/data/daily/2023/brdc", "brdc0020.23n.gz", gzipped(t, []byte("nav 2")))
	dir := t.TempDir()

	f := &Fetcher{MaxRetries: 1, Backoff: noBackoff}
	transfers := []Transfer{
		{Source: archive, RemoteDir: "/gnss/data/daily/2023/brdc", RemoteName: "brdc0010.23n.gz", LocalDir: dir, Decompress: true},
		{Source: archive, RemoteDir: "/gnss/data/daily/2023/brdc", RemoteName: "brdc0020.23n.gz", LocalDir: dir, Decompress: true},
	}
	paths, err := f.FetchAll(context.Background(), transfers, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "brdc0010.23n"), filepath.Join(dir, "brdc0020.23n")}, paths)

	transfers = append(transfers, Transfer{Source: archive, RemoteDir: "/gnss/data/daily/2023/brdc", RemoteName: "brdc0030.23n.gz", LocalDir: dir, Decompress: true})
	_, err = f.FetchAll(context.Background(), transfers, 2)
	assert.ErrorIs(t, err, transport.ErrPathNotFound)
	assert.NoFileExists(t, filepath.Join(dir, "brdc0030.23n"))
}

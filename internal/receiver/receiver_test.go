package receiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/dapcore/internal/dedup"
	"github.com/danmuck/dapcore/internal/ingest"
	"github.com/danmuck/dapcore/internal/queue"
	"github.com/danmuck/dapcore/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecoderLine(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		line string
		want string
		err  bool
	}{
		{name: "alpha", line: "POCSAG1200: Address:  123456  Function: 3  Alpha:   Hello World<NUL><NUL>", want: "6:1:123456:3:Hello World"},
		{name: "numeric", line: "POCSAG1200: Address:    2504  Function: 0  Numeric:  140509 191026", want: "5:1:2504:0:140509 191026"},
		{name: "markers inside", line: "POCSAG1200: Address: 8  Function: 3  Alpha: DB0<ETX>XYZ<EOT>\r\n", want: "6:1:8:3:DB0XYZ"},
		{name: "other decoder", line: "POCSAG512: Address: 8  Function: 3  Alpha: x", err: true},
		{name: "tone only", line: "POCSAG1200: Address: 8  Function: 3 ", err: true},
		{name: "garbage", line: "hello", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDecoderLine(tc.line)
			if tc.err {
				require.ErrorIs(t, err, ErrNotPOCSAG)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Submission())
		})
	}
}

func TestContentTypeMapping(t *testing.T) {
	assert.Equal(t, uint8(6), Decoded{Kind: "Alpha"}.ContentType())
	assert.Equal(t, uint8(5), Decoded{Kind: "Numeric"}.ContentType())
	assert.Equal(t, uint8(0), Decoded{Kind: "Tone"}.ContentType())
}

func TestCleanMarkers(t *testing.T) {
	assert.Equal(t, "abc<X>", CleanMarkers("<NUL>a<CR><LF>b<DC>c<X>"))
}

func TestScannerDropsBlacklistedRICs(t *testing.T) {
	testlog.Start(t)
	input := strings.Join([]string{
		"POCSAG1200: Address:       8  Function: 3  Alpha:   do6uk-dau",
		"POCSAG1200: Address:    1234  Function: 3  Alpha:   keep me",
		"not a message",
		"POCSAG1200: Address:     208  Function: 3  Alpha:   XTIME=1405191026",
	}, "\n")

	s := NewScanner([]uint32{8, 208})
	out := make(chan string, 8)
	require.NoError(t, s.Run(context.Background(), strings.NewReader(input), out))

	var got []string
	for line := range out {
		got = append(got, line)
	}
	assert.Equal(t, []string{"6:1:1234:3:keep me"}, got)
}

func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "dap")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

// startCore serves a real submission socket backed by q.
func startCore(t *testing.T, path string, q *queue.Queue) {
	t.Helper()
	sub := ingest.NewSubmitter(q, dedup.New(time.Minute))
	ep := ingest.NewSocketEndpoint(ingest.SocketConfig{Path: path, IdleTimeout: time.Second}, sub)
	require.NoError(t, ep.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ep.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestForwarderDeliversToSocket(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(shortTempDir(t), "dau.s")
	q := queue.New()
	startCore(t, path, q)

	fwd := NewForwarder(ForwarderConfig{SocketPath: path, RetryDelay: 20 * time.Millisecond, AckTimeout: time.Second})
	in := make(chan string, 4)
	in <- "6:1:1234:3:one"
	in <- "6:1:1234:3:two"
	close(in)

	require.NoError(t, fwd.Run(context.Background(), in))
	require.Equal(t, 2, q.Len())
	first, _ := q.Pop()
	second, _ := q.Pop()
	assert.Equal(t, "one", first.Payload)
	assert.Equal(t, "two", second.Payload)
}

func TestForwarderRetriesUntilSocketAppears(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(shortTempDir(t), "dau.s")
	q := queue.New()

	fwd := NewForwarder(ForwarderConfig{SocketPath: path, RetryDelay: 20 * time.Millisecond, AckTimeout: time.Second})
	in := make(chan string, 1)
	in <- "5:1:2504:0:late"
	close(in)

	done := make(chan error, 1)
	go func() { done <- fwd.Run(context.Background(), in) }()

	time.Sleep(80 * time.Millisecond)
	startCore(t, path, q)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("forwarder never delivered")
	}
	assert.Equal(t, 1, q.Len())
}

func TestForwarderStopsOnCancelWhileDisconnected(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(shortTempDir(t), "missing.s")
	fwd := NewForwarder(ForwarderConfig{SocketPath: path, RetryDelay: time.Hour})
	in := make(chan string, 1)
	in <- "6:1:8:3:x"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx, in) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.False(t, errors.Is(err, context.Canceled), "cancellation must not surface as an error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("forwarder ignored cancellation")
	}
}

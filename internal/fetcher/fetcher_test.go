package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/retrieval-cli/internal/resilience"
)

func newTestFetcher(t *testing.T, maxBytes int64, handler http.HandlerFunc) (*Fetcher, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	f := New(Options{
		DownloadDir:      dir,
		MaxDocumentBytes: maxBytes,
		StorageBaseURL:   srv.URL,
	})
	return f, dir
}

func TestFetch_Success(t *testing.T) {
	content := strings.Repeat("x", 1024)
	f, dir := newTestFetcher(t, 1<<20, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	})

	result := f.Fetch(context.Background(), "/recap/first-day-declaration.pdf", "acme-2024")

	require.True(t, result.Success, result.FailureReason)
	assert.Equal(t, int64(1024), result.SizeBytes)
	assert.Equal(t, filepath.Join(dir, "acme-2024", "first-day-declaration.pdf"), result.LocalPath)

	data, err := os.ReadFile(result.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestFetch_HTTPError(t *testing.T) {
	f, _ := newTestFetcher(t, 1<<20, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})

	result := f.Fetch(context.Background(), "/recap/missing.pdf", "acme-2024")
	assert.False(t, result.Success)
	assert.Contains(t, result.FailureReason, "HTTP 404")
}

func TestFetch_DeclaredOversizeRejectedAtHead(t *testing.T) {
	gets := 0
	f, _ := newTestFetcher(t, 100, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets++
		}
		w.Header().Set("Content-Length", "5000")
		if r.Method == http.MethodGet {
			w.Write([]byte(strings.Repeat("x", 5000)))
		}
	})

	result := f.Fetch(context.Background(), "/recap/huge.pdf", "acme-2024")
	assert.False(t, result.Success)
	assert.Contains(t, result.FailureReason, "exceeds ceiling")
	// Rejected before any GET was issued.
	assert.Equal(t, 0, gets)
}

func TestFetch_UndeclaredOversizeAbortsMidStream(t *testing.T) {
	f, dir := newTestFetcher(t, 100, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// No Content-Length on HEAD; the probe passes.
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Transfer-Encoding", "chunked")
		w.Write([]byte(strings.Repeat("x", 500)))
	})

	result := f.Fetch(context.Background(), "/recap/liar.pdf", "acme-2024")
	assert.False(t, result.Success)
	assert.Contains(t, result.FailureReason, "exceeds ceiling")

	// The partial file was removed.
	_, err := os.Stat(filepath.Join(dir, "acme-2024", "liar.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetch_HeadFailureToleratedWhenBodyFits(t *testing.T) {
	f, _ := newTestFetcher(t, 1<<20, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte("small body"))
	})

	result := f.Fetch(context.Background(), "/recap/doc.pdf", "acme-2024")
	assert.True(t, result.Success, result.FailureReason)
}

func TestFetch_AbsoluteURLNotRebased(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("absolute"))
	}))
	t.Cleanup(srv.Close)

	f := New(Options{
		DownloadDir:      t.TempDir(),
		MaxDocumentBytes: 1 << 20,
		StorageBaseURL:   "https://unreachable.invalid",
	})

	result := f.Fetch(context.Background(), srv.URL+"/case/doc.pdf", "acme-2024")
	assert.True(t, result.Success, result.FailureReason)
}

func TestFetch_BadURL(t *testing.T) {
	f, _ := newTestFetcher(t, 1<<20, func(w http.ResponseWriter, r *http.Request) {})

	result := f.Fetch(context.Background(), "://not-a-url", "acme-2024")
	assert.False(t, result.Success)
	assert.Contains(t, result.FailureReason, "unresolvable URL")
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var gets int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			return
		}
		gets++
		if gets < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	f := New(Options{
		DownloadDir:      t.TempDir(),
		MaxDocumentBytes: 1 << 20,
		StorageBaseURL:   srv.URL,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})

	result := f.Fetch(context.Background(), "/recap/doc.pdf", "acme-2024")
	require.True(t, result.Success, result.FailureReason)
	assert.Equal(t, 3, gets)
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "doc.pdf", fileNameFromURL("https://x.test/recap/doc.pdf"))
	assert.Equal(t, "doc.PDF", fileNameFromURL("https://x.test/recap/doc.PDF"))
	assert.Equal(t, "entry-12.pdf", fileNameFromURL("https://x.test/a/entry-12"))
	assert.Equal(t, "document.pdf", fileNameFromURL("https://x.test/"))
}

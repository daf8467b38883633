// Package fetcher streams approved documents to local storage with a hard
// size ceiling enforced both before and during the download.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/internal/resilience"
)

// Options configures a Fetcher.
type Options struct {
	// DownloadDir is the root under which per-deal directories are created.
	DownloadDir string

	// MaxDocumentBytes is the hard size ceiling. Default: 50 MB. Larger
	// files are almost always full docket compilations, not single motions.
	MaxDocumentBytes int64

	// StorageBaseURL resolves relative document paths like /recap/....
	StorageBaseURL string

	// Retry governs transient-failure retries on the download itself.
	Retry resilience.RetryConfig

	Timeout    time.Duration
	UserAgent  string
	HTTPClient *http.Client
}

// Fetcher downloads one document per approved deal.
type Fetcher struct {
	opts Options
	http *http.Client
}

// New creates a Fetcher, filling zero options with defaults.
func New(opts Options) *Fetcher {
	if opts.DownloadDir == "" {
		opts.DownloadDir = "./downloads"
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = 52_428_800
	}
	if opts.StorageBaseURL == "" {
		opts.StorageBaseURL = "https://storage.courtlistener.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "retrieval-cli/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("fetcher", "download")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Fetcher{opts: opts, http: client}
}

// Fetch downloads rawURL into the deal's directory. Failures are reported
// in the result, never returned as errors: oversize content, HTTP errors,
// and I/O problems all map to Success=false with a readable reason.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dealID string) model.FetchResult {
	target, err := f.resolveURL(rawURL)
	if err != nil {
		return failure(fmt.Sprintf("unresolvable URL %q: %v", rawURL, err))
	}

	if reason := f.probeSize(ctx, target); reason != "" {
		return failure(reason)
	}

	res, err := resilience.DoVal(ctx, f.opts.Retry, func(ctx context.Context) (model.FetchResult, error) {
		return f.download(ctx, target, dealID)
	})
	if err != nil {
		return failure(err.Error())
	}
	return res
}

// download performs one GET attempt. Transient transport and server
// failures are returned as errors so the retry loop can take them;
// everything else resolves to a FetchResult.
func (f *Fetcher) download(ctx context.Context, target, dealID string) (model.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return failure(fmt.Sprintf("create request: %v", err)), nil
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return model.FetchResult{}, resilience.NewTransientError(
			eris.Wrapf(err, "fetcher: download %s", target), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return model.FetchResult{}, resilience.NewTransientError(
				eris.Errorf("HTTP %d from %s", resp.StatusCode, target), resp.StatusCode)
		}
		return failure(fmt.Sprintf("HTTP %d from %s", resp.StatusCode, target)), nil
	}
	if resp.ContentLength > f.opts.MaxDocumentBytes {
		return failure(oversizeReason(resp.ContentLength, f.opts.MaxDocumentBytes)), nil
	}

	dir := filepath.Join(f.opts.DownloadDir, dealID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failure(fmt.Sprintf("create directory: %v", err)), nil
	}
	localPath := filepath.Join(dir, fileNameFromURL(target))

	n, err := f.streamToFile(resp.Body, localPath)
	if err != nil {
		// The partial file is already gone.
		return failure(err.Error()), nil
	}

	zap.L().Info("document downloaded",
		zap.String("deal_id", dealID),
		zap.String("path", localPath),
		zap.Int64("bytes", n),
	)

	return model.FetchResult{Success: true, LocalPath: localPath, SizeBytes: n}, nil
}

// probeSize issues a HEAD request and returns a failure reason if the
// declared size exceeds the ceiling. Servers that reject HEAD or omit
// Content-Length pass the probe; the streaming guard still applies.
func (f *Fetcher) probeSize(ctx context.Context, target string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusOK && resp.ContentLength > f.opts.MaxDocumentBytes {
		return oversizeReason(resp.ContentLength, f.opts.MaxDocumentBytes)
	}
	return ""
}

// streamToFile copies body to path, counting bytes and aborting once the
// ceiling is crossed. On any failure the partial file is removed.
func (f *Fetcher) streamToFile(body io.Reader, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}

	limited := io.LimitReader(body, f.opts.MaxDocumentBytes+1)
	n, err := io.Copy(file, limited)
	closeErr := file.Close()

	switch {
	case err != nil:
		_ = os.Remove(path)
		return 0, eris.Wrap(err, "fetcher: write file")
	case closeErr != nil:
		_ = os.Remove(path)
		return 0, eris.Wrap(closeErr, "fetcher: close file")
	case n > f.opts.MaxDocumentBytes:
		_ = os.Remove(path)
		return 0, eris.New(oversizeReason(n, f.opts.MaxDocumentBytes))
	}

	return n, nil
}

// resolveURL turns relative document paths (e.g. /recap/...) into absolute
// URLs against the storage base.
func (f *Fetcher) resolveURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return rawURL, nil
	}
	base, err := url.Parse(f.opts.StorageBaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

// fileNameFromURL derives a local filename from the URL path, guaranteeing
// a .pdf extension.
func fileNameFromURL(rawURL string) string {
	name := "document.pdf"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

func oversizeReason(size, ceiling int64) string {
	return fmt.Sprintf("document size %d bytes exceeds ceiling %d bytes", size, ceiling)
}

func failure(reason string) model.FetchResult {
	zap.L().Warn("fetch failed", zap.String("reason", reason))
	return model.FetchResult{Success: false, FailureReason: reason}
}

package capability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/hashicorp/go-retryablehttp"
)

// Downloader implements pipeline.Downloader: a retrying GET against a
// remote URL, streamed straight to dst. The per-platform cookie-jar concern
// (§4.8 Open Question: per-user scope) is represented here as a per-user
// cookie header stored via SetCookieJar; Download does not attach stored
// cookies to its request.
type Downloader struct {
	http       *http.Client
	cookieJars map[string]string
}

// NewDownloader builds a Downloader with a bounded retry policy, the same
// shape as the teacher's file_copy.go client.
func NewDownloader() *Downloader {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 15 * time.Second
	client.Logger = nil
	return &Downloader{
		http:       client.StandardClient(),
		cookieJars: make(map[string]string),
	}
}

// SetCookieJar associates a raw cookie header with a user id. Download does
// not read these headers.
func (d *Downloader) SetCookieJar(userID, cookieHeader string) {
	d.cookieJars[userID] = cookieHeader
}

// Download implements pipeline.Downloader.
func (d *Downloader) Download(ctx context.Context, remoteURL, platform string, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return errkind.New(errkind.InvalidArgument, "building download request", err)
	}

	start := time.Now()
	resp, err := d.http.Do(req)
	metrics.Metrics.DownloaderClient.RequestDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.DownloaderClient.FailureCount.WithLabelValues(platform, "transient").Inc()
		return errkind.New(errkind.Transient, "downloading source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		metrics.Metrics.DownloaderClient.FailureCount.WithLabelValues(platform, "unrecoverable").Inc()
		return errkind.New(errkind.Unrecoverable, fmt.Sprintf("download returned status %d", resp.StatusCode), nil)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return errkind.New(errkind.Transient, "streaming download body", err)
	}
	return nil
}

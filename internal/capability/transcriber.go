package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/metrics"
	"github.com/hashicorp/go-retryablehttp"
)

// Transcriber implements pipeline.Transcriber by posting the source video
// to an opaque speech-to-text endpoint and writing back the SRT it returns.
// Like LLMClient it is a thin, retrying HTTP call; the ASR model itself is
// out of scope (§1 Non-goals: no model hosting in this repo).
type Transcriber struct {
	endpoint string
	http     *http.Client
}

// NewTranscriber builds a Transcriber against endpoint.
func NewTranscriber(endpoint string) *Transcriber {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Logger = nil
	return &Transcriber{endpoint: endpoint, http: client.StandardClient()}
}

// Transcribe implements pipeline.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, videoPath string, dst io.Writer) error {
	f, err := os.Open(videoPath)
	if err != nil {
		return errkind.New(errkind.Unrecoverable, "opening video for transcription", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, f)
	if err != nil {
		return errkind.New(errkind.Internal, "building transcription request", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	start := time.Now()
	resp, err := t.http.Do(req)
	metrics.Metrics.LLMClient.RequestDuration.WithLabelValues("transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		return errkind.New(errkind.Transient, "calling transcription endpoint", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errkind.New(errkind.Unrecoverable, fmt.Sprintf("transcription endpoint returned status %d: %s", resp.StatusCode, body), nil)
	}

	var out struct {
		SRT string `json:"srt"`
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return errkind.New(errkind.Transient, "reading transcription response", err)
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		return errkind.New(errkind.Unrecoverable, "decoding transcription response", err)
	}
	_, err = dst.Write([]byte(out.SRT))
	return err
}

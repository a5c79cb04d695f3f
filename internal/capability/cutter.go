package capability

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/clipforge/highlighter/internal/errkind"
	"github.com/clipforge/highlighter/internal/metrics"
)

// FFmpegCutter implements pipeline.Cutter by shelling out to ffmpeg,
// following the teacher's exec.Command invocation style (pipeline/ffmpeg.go)
// generalized from HLS segmenting to stream-copy clip extraction and
// concat-demuxer collection assembly.
type FFmpegCutter struct {
	binary string
}

// NewFFmpegCutter returns a Cutter invoking "ffmpeg" on PATH, or binary if
// given (tests can point this at a stub script).
func NewFFmpegCutter(binary string) *FFmpegCutter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegCutter{binary: binary}
}

// Cut extracts [startSec, endSec) from sourcePath into dstPath via stream
// copy, avoiding a re-encode for speed.
func (c *FFmpegCutter) Cut(ctx context.Context, sourcePath string, startSec, endSec float64, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return errkind.New(errkind.Internal, "creating clip output directory", err)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.binary,
		"-y",
		"-ss", strconv.FormatFloat(startSec, 'f', 3, 64),
		"-to", strconv.FormatFloat(endSec, 'f', 3, 64),
		"-i", sourcePath,
		"-c", "copy",
		dstPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.Metrics.CutterClient.RequestDuration.WithLabelValues("cut").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Metrics.CutterClient.FailureCount.WithLabelValues("cut", "unrecoverable").Inc()
		return errkind.New(errkind.Unrecoverable, fmt.Sprintf("ffmpeg cut failed: %s", stderr.String()), err)
	}
	return nil
}

// Concat joins clipPaths into a single file at dstPath using ffmpeg's
// concat demuxer, which requires a file list rather than repeated -i flags.
func (c *FFmpegCutter) Concat(ctx context.Context, clipPaths []string, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return errkind.New(errkind.Internal, "creating collection output directory", err)
	}

	listFile, err := os.CreateTemp("", "concat-list-*.txt")
	if err != nil {
		return errkind.New(errkind.Internal, "creating concat list file", err)
	}
	defer os.Remove(listFile.Name())

	for _, p := range clipPaths {
		if _, err := fmt.Fprintf(listFile, "file '%s'\n", p); err != nil {
			listFile.Close()
			return errkind.New(errkind.Internal, "writing concat list entry", err)
		}
	}
	if err := listFile.Close(); err != nil {
		return errkind.New(errkind.Internal, "closing concat list file", err)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, c.binary,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c", "copy",
		dstPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	metrics.Metrics.CutterClient.RequestDuration.WithLabelValues("concat").Observe(time.Since(start).Seconds())
	if runErr != nil {
		metrics.Metrics.CutterClient.FailureCount.WithLabelValues("concat", "unrecoverable").Inc()
		return errkind.New(errkind.Unrecoverable, fmt.Sprintf("ffmpeg concat failed: %s", stderr.String()), runErr)
	}
	return nil
}

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:00,000 --> 00:00:02,500
Hello there.

2
00:00:02,600 --> 00:00:05,000
This is a test subtitle.

3
00:01:00,000 --> 00:01:03,000
Much later chunk.
`

func TestParseSRT(t *testing.T) {
	cues, err := parseSRT(strings.NewReader(sampleSRT))
	require.NoError(t, err)
	require.Len(t, cues, 3)
	require.Equal(t, 0.0, cues[0].StartTime)
	require.Equal(t, 2.5, cues[0].EndTime)
	require.Equal(t, "Hello there.", cues[0].Text)
	require.InDelta(t, 60.0, cues[2].StartTime, 0.001)
}

func TestChunkCuesSplitsOnWindow(t *testing.T) {
	cues, err := parseSRT(strings.NewReader(sampleSRT))
	require.NoError(t, err)

	chunks := chunkCues(cues, 10.0)
	require.Len(t, chunks, 2, "the third cue starts well past the 10s window and should start a new chunk")
	require.Equal(t, 0, chunks[0].Index)
	require.Equal(t, 1, chunks[1].Index)
	require.Contains(t, chunks[0].Text, "Hello there.")
	require.Contains(t, chunks[1].Text, "Much later chunk.")
}

func TestParseSRTTimecode(t *testing.T) {
	v, ok := parseSRTTimecode("01:02:03,456")
	require.True(t, ok)
	require.InDelta(t, 3723.456, v, 0.001)

	_, ok = parseSRTTimecode("not-a-timecode")
	require.False(t, ok)
}

package progress

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

func newTestSink(t *testing.T) (*SpinnerSink, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	sink := NewSpinnerSink(&buf)
	now := time.Unix(0, 0)
	sink.now = func() time.Time {
		now = now.Add(250 * time.Millisecond)
		return now
	}
	return sink, &buf
}

func TestSpinnerSink_PrintsStepsAndStageTimes(t *testing.T) {
	sink, buf := newTestSink(t)
	ctx := context.Background()

	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: "Deployed", Current: 1, Total: 2, Message: "McdView at 0x01"})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: "Deployed", Current: 2, Total: 2, Message: "Exchange at 0x02"})
	sink.OnProgress(ctx, usecase.ProgressEvent{Stage: "Fixtures", Message: "DAI"})
	sink.Stop()

	out := buf.String()
	assert.Contains(t, out, "Deployed [1/2] McdView at 0x01\n")
	assert.Contains(t, out, "Deployed [2/2] Exchange at 0x02\n")
	assert.Contains(t, out, "✓ Deployed (250ms)\n")
	assert.Contains(t, out, "Fixtures DAI\n")
	assert.Contains(t, out, "✓ Fixtures (250ms)\n")
}

func TestSpinnerSink_InfoAndError(t *testing.T) {
	sink, buf := newTestSink(t)
	sink.Info("snapshot 0x1 created")
	sink.Error("restore failed")
	assert.Equal(t, "snapshot 0x1 created\nrestore failed\n", buf.String())
}

func TestNewSink(t *testing.T) {
	assert.IsType(t, usecase.NopProgress{}, NewSink(true))
	assert.IsType(t, &SpinnerSink{}, NewSink(false))
}

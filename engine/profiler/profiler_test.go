package profiler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/Carmen-Shannon/excess/common"
	"github.com/Carmen-Shannon/excess/engine/profiler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProfilerReportsOncePerInterval(t *testing.T) {
	var out bytes.Buffer
	common.SetLogger(slog.New(slog.NewJSONHandler(&out, nil)))
	defer common.SetLogger(nil)

	clock := &fakeClock{t: time.Unix(0, 0)}
	p := profiler.NewProfiler(profiler.WithInterval(500*time.Millisecond), profiler.WithClock(clock.now))

	// 50 frames at 100 Hz: reports after frames 50 and 100
	reports := 0
	for i := 0; i < 100; i++ {
		clock.advance(10 * time.Millisecond)
		if p.Tick() {
			reports++
		}
	}
	assert.Equal(t, 2, reports)
	assert.InDelta(t, 100, p.Last().FPS, 1e-9)
	assert.Positive(t, p.Last().SysMB)

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "profiler", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.InDelta(t, 100, rec["fps"], 1e-9)
	assert.Contains(t, rec, "heap_mb")
	assert.Contains(t, rec, "gc")
}

func TestProfilerQuietBeforeInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := profiler.NewProfiler(profiler.WithClock(clock.now))
	for i := 0; i < 10; i++ {
		clock.advance(time.Millisecond)
		assert.False(t, p.Tick())
	}
	assert.Equal(t, profiler.Stats{}, p.Last())
}

package transcode

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	d, ok := parseDuration("  Duration: 01:02:03.50, start: 0.000000, bitrate: 8000 kb/s")
	assert.True(t, ok)
	assert.Equal(t, time.Hour+2*time.Minute+3500*time.Millisecond, d)

	_, ok = parseDuration("Stream #0:0: Video: h264")
	assert.False(t, ok)
	_, ok = parseDuration("Duration: N/A, start: 0.000000")
	assert.False(t, ok)
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"unknown duration", Progress{Position: time.Minute}, 0},
		{"half", Progress{Duration: 2 * time.Minute, Position: time.Minute}, 50},
		{"capped below done", Progress{Duration: time.Minute, Position: 2 * time.Minute}, 99.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Percent())
		})
	}
}

func TestReadProgress(t *testing.T) {
	input := "frame=10\nout_time_us=1500000\nprogress=continue\nout_time_ms=N/A\nout_time_ms=3000000\nprogress=end\n"
	var got []time.Duration
	readProgress(strings.NewReader(input), func(d time.Duration) { got = append(got, d) })
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3 * time.Second}, got)
}

func TestArgsTargetSessionDir(t *testing.T) {
	remux := remuxArgs("https://cdn/x.mkv", "/tmp/s")
	assert.Equal(t, "/tmp/s/output.mp4", remux[len(remux)-1])
	assert.Contains(t, remux, "copy")

	hls := hlsArgs("https://cdn/x.mkv", "/tmp/s")
	assert.Equal(t, "/tmp/s/playlist.m3u8", hls[len(hls)-1])
	assert.Contains(t, hls, "libx264")
	assert.Contains(t, hls, "/tmp/s/segment_%05d.ts")
}

package transcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	OutputMP4      = "output.mp4"
	OutputPlaylist = "playlist.m3u8"
	segmentPattern = "segment_%05d.ts"
)

var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	segmentRe  = regexp.MustCompile(`^segment_\d{5}\.ts$`)
)

// Progress is one report from a running job.
type Progress struct {
	Duration time.Duration
	Position time.Duration
}

// Percent is the completed share in [0,100), or 0 when the duration is unknown.
func (p Progress) Percent() float64 {
	if p.Duration <= 0 {
		return 0
	}
	pct := float64(p.Position) / float64(p.Duration) * 100
	if pct < 0 {
		return 0
	}
	if pct > 99.9 {
		return 99.9
	}
	return pct
}

// Runner runs one ffmpeg invocation and reports progress until it exits.
type Runner interface {
	Run(ctx context.Context, args []string, report func(Progress)) error
}

// ExecRunner runs the ffmpeg binary as a subprocess.
type ExecRunner struct {
	Binary string
}

func (r *ExecRunner) Run(ctx context.Context, args []string, report func(Progress)) error {
	binary := r.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}

	var (
		mu       sync.Mutex
		duration time.Duration
		lastLine string
		wg       sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			mu.Lock()
			if d, ok := parseDuration(line); ok && duration == 0 {
				duration = d
			}
			lastLine = line
			mu.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		readProgress(stdout, func(pos time.Duration) {
			mu.Lock()
			p := Progress{Duration: duration, Position: pos}
			mu.Unlock()
			if report != nil {
				report(p)
			}
		})
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mu.Lock()
		defer mu.Unlock()
		if lastLine != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, lastLine)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// readProgress parses the key=value stream written by -progress.
// out_time_us and out_time_ms both carry microseconds.
func readProgress(r io.Reader, fn func(time.Duration)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || us < 0 {
				continue
			}
			fn(time.Duration(us) * time.Microsecond)
		}
	}
}

func parseDuration(line string) (time.Duration, bool) {
	m := durationRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	d := time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec*float64(time.Second))
	return d, d > 0
}

// remuxArgs copies the first video and audio streams into a faststart MP4.
func remuxArgs(source, dir string) []string {
	return []string{
		"-hide_banner", "-nostats", "-loglevel", "info", "-stats_period", "1",
		"-progress", "pipe:1", "-y",
		"-i", source,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c", "copy",
		"-movflags", "+faststart",
		filepath.Join(dir, OutputMP4),
	}
}

// hlsArgs re-encodes to H.264/AAC and writes MPEG-TS segments.
func hlsArgs(source, dir string) []string {
	return []string{
		"-hide_banner", "-nostats", "-loglevel", "info", "-stats_period", "1",
		"-progress", "pipe:1", "-y",
		"-i", source,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "192k", "-ac", "2",
		"-f", "hls",
		"-hls_time", "4",
		"-hls_list_size", "0",
		"-hls_playlist_type", "event",
		"-hls_flags", "independent_segments+temp_file",
		"-hls_segment_filename", filepath.Join(dir, segmentPattern),
		filepath.Join(dir, OutputPlaylist),
	}
}

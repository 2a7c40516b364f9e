// Package probe measures audio duration by decoding it with ffmpeg.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-transcriber/internal/audio"
	"github.com/lexiqai/voice-transcriber/internal/observability"
)

// ErrProbe wraps every failure to run the decoder
var ErrProbe = errors.New("probe failed")

// gracePeriod between SIGTERM and SIGKILL once the context is done
const gracePeriod = 2 * time.Second

// progressPattern matches the time= field of ffmpeg's progress output
var progressPattern = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d{2})`)

// Prober runs ffmpeg with a null muxer and reads back how much audio it decoded
type Prober struct {
	binary  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewProber creates a prober for the given ffmpeg binary. A zero timeout
// leaves the deadline to the caller's context.
func NewProber(binary string, timeout time.Duration) *Prober {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Prober{
		binary:  binary,
		timeout: timeout,
		logger:  observability.GetLogger().With().Str("component", "probe").Logger(),
	}
}

// Probe streams the payload to ffmpeg's stdin and returns the decoded
// duration in seconds. Audio ffmpeg cannot make sense of yields 0, which
// routes the request to synchronous recognition.
//
// A non-zero ffmpeg exit status is not an error: the decoder may stop early
// while still having printed usable progress.
func (p *Prober) Probe(ctx context.Context, payload *audio.Payload) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, p.binary, "-i", "-", "-f", "null", "-")
	c.Stdin = bytes.NewReader(payload.Data)

	var stderr bytes.Buffer
	c.Stderr = &stderr

	// Kill the whole group so no decoder outlives the request
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = gracePeriod

	start := time.Now()
	err := c.Run()
	if ctx.Err() != nil {
		return 0, fmt.Errorf("%w: ffmpeg killed by context: %w", ErrProbe, ctx.Err())
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("%w: failed to run %s: %w", ErrProbe, p.binary, err)
	}

	seconds, found := ParseDuration(stderr.String())
	event := p.logger.Debug().
		Float64("seconds", seconds).
		Bool("progress_found", found).
		Int("bytes", payload.Len()).
		Dur("elapsed", time.Since(start))
	if exitErr != nil {
		event = event.Int("exit_code", exitErr.ExitCode())
	}
	event.Msg("Probed audio duration")

	return seconds, nil
}

// ParseDuration returns the last time=HH:MM:SS.CC value in ffmpeg's stderr.
// ffmpeg rewrites its progress line as it goes, so the final match is the
// total decoded duration.
func ParseDuration(text string) (float64, bool) {
	matches := progressPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, false
	}

	m := matches[len(matches)-1]
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	centis, _ := strconv.Atoi(m[4])

	return float64(hours*3600+minutes*60+secs) + float64(centis)/100, true
}

package checks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"pmon/internal/config"
)

// pingGrace is added on top of the ping timeout before the process is killed.
const pingGrace = 2 * time.Second

// commandRunner runs an external command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

var (
	linuxRTTRegex   = regexp.MustCompile(`rtt min/avg/max/mdev = ([\d.]+)/([\d.]+)/([\d.]+)/([\d.]+) ms`)
	darwinRTTRegex  = regexp.MustCompile(`round-trip min/avg/max/(?:std-dev|stddev) = ([\d.]+)/([\d.]+)/([\d.]+)/([\d.]+) ms`)
	windowsRTTRegex = regexp.MustCompile(`Average = (\d+)ms`)
)

// PingChecker probes a host with the platform ping utility.
// The port is ignored.
type PingChecker struct {
	*BaseChecker
	defaults config.PingDefaultsConfig
	goos     string
	grace    time.Duration
	run      commandRunner
}

// NewPingChecker creates a new ping checker instance.
func NewPingChecker(defaults config.PingDefaultsConfig) *PingChecker {
	return &PingChecker{
		BaseChecker: NewBaseChecker(),
		defaults:    defaults,
		goos:        runtime.GOOS,
		grace:       pingGrace,
		run:         runCommand,
	}
}

// Type returns "ping".
func (p *PingChecker) Type() string {
	return "ping"
}

// Check runs ping and succeeds on a zero exit status.
// Latency is the reported average round trip, or the wall-clock duration of
// the command when the output cannot be parsed.
func (p *PingChecker) Check(ctx context.Context, target Target) Result {
	timeout := timeoutOr(target.Timeout, p.defaults.Timeout)
	count := max(p.defaults.Count, 1)

	ctx, cancel := context.WithTimeout(ctx, timeout+p.grace)
	defer cancel()

	start := time.Now()
	output, err := p.run(ctx, "ping", pingArgs(p.goos, target.Host, count, timeout)...)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return p.CreateErrorResult(fmt.Errorf("ping timeout"))
		}
		return p.CreateErrorResult(pingError(err))
	}

	if avg, ok := parseAverageRTT(string(output)); ok {
		return Result{Success: true, LatencyMs: &avg}
	}
	return p.CreateSuccessResult(elapsed)
}

// pingArgs builds a platform-specific ping argument list.
func pingArgs(goos, host string, count int, timeout time.Duration) []string {
	switch goos {
	case "windows":
		return []string{
			"-n", strconv.Itoa(count),
			"-w", strconv.FormatInt(timeout.Milliseconds(), 10),
			host,
		}
	default:
		return []string{
			"-c", strconv.Itoa(count),
			"-W", strconv.Itoa(int(math.Ceil(timeout.Seconds()))),
			host,
		}
	}
}

// parseAverageRTT extracts the average round trip in milliseconds from ping
// output. Linux, macOS/BSD and Windows summaries are recognised regardless of
// the platform the process runs on.
func parseAverageRTT(output string) (float64, bool) {
	for _, re := range []*regexp.Regexp{linuxRTTRegex, darwinRTTRegex} {
		if m := re.FindStringSubmatch(output); m != nil {
			if avg, err := strconv.ParseFloat(m[2], 64); err == nil {
				return avg, true
			}
		}
	}
	if m := windowsRTTRegex.FindStringSubmatch(output); m != nil {
		if avg, err := strconv.ParseFloat(m[1], 64); err == nil {
			return avg, true
		}
	}
	return 0, false
}

// pingError prefers the command's stderr over the bare exit status.
func pingError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
			return errors.New(msg)
		}
		return fmt.Errorf("ping failed: %w", err)
	}
	return fmt.Errorf("ping command failed: %w", err)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

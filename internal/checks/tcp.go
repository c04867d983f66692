package checks

import (
	"context"
	"net"
	"strconv"
	"time"

	"pmon/internal/config"
)

// TCPChecker succeeds when a TCP connection can be established.
type TCPChecker struct {
	*BaseChecker
	defaults config.TCPDefaultsConfig
}

// NewTCPChecker creates a new TCP checker instance.
func NewTCPChecker(defaults config.TCPDefaultsConfig) *TCPChecker {
	return &TCPChecker{BaseChecker: NewBaseChecker(), defaults: defaults}
}

// Type returns "tcp".
func (c *TCPChecker) Type() string {
	return "tcp"
}

// Check dials the target and closes the connection immediately.
// Latency is the time until the handshake completed.
func (c *TCPChecker) Check(ctx context.Context, target Target) Result {
	dialer := net.Dialer{Timeout: timeoutOr(target.Timeout, c.defaults.Timeout)}
	address := net.JoinHostPort(target.Host, strconv.Itoa(target.Port))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return c.CreateErrorResult(err)
	}
	elapsed := time.Since(start)
	conn.Close()

	return c.CreateSuccessResult(elapsed)
}

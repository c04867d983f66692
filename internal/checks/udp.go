package checks

import (
	"context"
	"net"
	"strconv"
	"time"

	"pmon/internal/config"
)

// UDPChecker sends one datagram to the target.
//
// UDP is connectionless, so a success only proves that the local socket
// could be set up and the datagram handed to the network stack. The remote
// side may be down. Results are marked Weak accordingly.
type UDPChecker struct {
	*BaseChecker
	defaults config.UDPDefaultsConfig
}

// NewUDPChecker creates a new UDP checker instance.
func NewUDPChecker(defaults config.UDPDefaultsConfig) *UDPChecker {
	return &UDPChecker{BaseChecker: NewBaseChecker(), defaults: defaults}
}

// Type returns "udp".
func (c *UDPChecker) Type() string {
	return "udp"
}

// Check opens a datagram association and writes the probe payload.
func (c *UDPChecker) Check(ctx context.Context, target Target) Result {
	timeout := timeoutOr(target.Timeout, c.defaults.Timeout)
	dialer := net.Dialer{Timeout: timeout}
	address := net.JoinHostPort(target.Host, strconv.Itoa(target.Port))

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "udp", address)
	if err != nil {
		return c.CreateErrorResult(err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(c.payload())); err != nil {
		return c.CreateErrorResult(err)
	}

	result := c.CreateSuccessResult(time.Since(start))
	result.Weak = true
	return result
}

func (c *UDPChecker) payload() string {
	if c.defaults.Payload == "" {
		return "ping"
	}
	return c.defaults.Payload
}

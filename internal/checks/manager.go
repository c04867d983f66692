// Package checks provides reachability probes for the PMON port monitor.
//
// Each protocol implements the Checker interface; the Manager routes a
// (host, port, protocol) tuple to the right one.
//
// Supported protocols:
//   - tcp: connection establishment
//   - udp: datagram send (weak signal, see UDPChecker)
//   - ping: the platform ping utility
//
// Example usage:
//
//	manager := checks.NewManager(cfg.Checks)
//	result := manager.CheckPort(ctx, "10.0.0.1", 443, "tcp", 0)
package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pmon/internal/config"
)

// Checker defines the interface that all protocol probes must implement.
type Checker interface {
	// Check probes the target and never returns a transport error;
	// failures are reported inside the Result.
	Check(ctx context.Context, target Target) Result

	// Type returns the protocol identifier.
	Type() string
}

// Manager routes probes to the checker registered for their protocol.
type Manager struct {
	checkers map[string]Checker
}

// NewManager creates a check manager with the tcp, udp and ping checkers.
func NewManager(cfg config.ChecksConfig) *Manager {
	manager := &Manager{
		checkers: make(map[string]Checker),
	}

	manager.registerChecker(NewTCPChecker(cfg.TCP))
	manager.registerChecker(NewUDPChecker(cfg.UDP))
	manager.registerChecker(NewPingChecker(cfg.Ping))

	return manager
}

// registerChecker registers a checker with the manager.
func (m *Manager) registerChecker(checker Checker) {
	m.checkers[checker.Type()] = checker
	log.Debug().Str("protocol", checker.Type()).Msg("Checker registered")
}

// CheckPort probes (host, port) over protocol. A zero timeout uses the
// protocol default. An unknown protocol yields a failed result, not a panic.
func (m *Manager) CheckPort(ctx context.Context, host string, port int, protocol string, timeout time.Duration) Result {
	protocol = strings.ToLower(protocol)

	checker, exists := m.checkers[protocol]
	if !exists {
		return Result{Success: false, Error: fmt.Sprintf("unsupported protocol: %s", protocol)}
	}

	result := checker.Check(ctx, Target{Host: host, Port: port, Timeout: timeout})

	log.Debug().
		Str("host", host).
		Int("port", port).
		Str("protocol", protocol).
		Bool("success", result.Success).
		Str("error", result.Error).
		Msg("Probe completed")

	return result
}

// SupportedProtocols returns the registered protocol identifiers, sorted.
func (m *Manager) SupportedProtocols() []string {
	types := make([]string, 0, len(m.checkers))
	for protocol := range m.checkers {
		types = append(types, protocol)
	}
	sort.Strings(types)
	return types
}

// Package jobs holds the job classes built into the worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"egress-worker/internal/domain"
	"egress-worker/pkg/log"

	"go.uber.org/zap"
)

// EgressCheckClass is the class name of the egress connectivity check
const EgressCheckClass = "EgressCheck"

const defaultCheckTimeout = 3 * time.Second

// EgressCheckParams are the envelope params of an egress check
type EgressCheckParams struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	SourceIP  string `json:"source_ip,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// EgressCheck opens a TCP connection to Host:Port, optionally from SourceIP,
// to verify that the egress address can reach the target.
type EgressCheck struct {
	id      string
	params  EgressCheckParams
	timeout time.Duration
}

// NewEgressCheck is the registry factory for EgressCheckClass
func NewEgressCheck(id string, raw json.RawMessage) (domain.Job, error) {
	var p EgressCheckParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	if p.Host == "" {
		return nil, errors.New("host is required")
	}
	if p.Port < 1 || p.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", p.Port)
	}
	if p.SourceIP != "" && net.ParseIP(p.SourceIP) == nil {
		return nil, fmt.Errorf("invalid source_ip %q", p.SourceIP)
	}

	timeout := defaultCheckTimeout
	if p.TimeoutMs > 0 {
		timeout = time.Duration(p.TimeoutMs) * time.Millisecond
	}
	return &EgressCheck{id: id, params: p, timeout: timeout}, nil
}

func (j *EgressCheck) Execute(ctx context.Context) error {
	dialer := &net.Dialer{Timeout: j.timeout}
	if j.params.SourceIP != "" {
		dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(j.params.SourceIP)}
	}

	target := net.JoinHostPort(j.params.Host, strconv.Itoa(j.params.Port))
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", target)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("egress check to %s failed: %w", target, err)
	}
	defer conn.Close()

	log.FromContext(ctx).Info("Egress check succeeded", zap.String("event", "egress_check_ok"),
		zap.String("target", target), zap.String("source_ip", j.params.SourceIP), zap.Duration("response_time", elapsed))
	return nil
}

// Register adds the built-in job classes to registry
func Register(registry *domain.JobRegistry) {
	registry.Register(EgressCheckClass, NewEgressCheck)
}

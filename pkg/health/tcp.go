package health

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cuemby/sahara/pkg/mapr/domain"
)

// DefaultDialTimeout bounds a single TCP dial
const DefaultDialTimeout = 5 * time.Second

// TCPChecker reports whether a node process port accepts connections
type TCPChecker struct {
	// Address is host:port, e.g. "10.0.0.5:7222"
	Address string

	// Process names the node process expected behind Address, if known
	Process string

	Timeout time.Duration
}

// NewTCPChecker checks address with DefaultDialTimeout
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{Address: address, Timeout: DefaultDialTimeout}
}

func (t *TCPChecker) target() string {
	if t.Process == "" {
		return t.Address
	}
	return t.Process + " on " + t.Address
}

// Check dials Address once
func (t *TCPChecker) Check(ctx context.Context) Result {
	result := Result{CheckedAt: time.Now()}

	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	result.Duration = time.Since(result.CheckedAt)
	if err != nil {
		result.Message = fmt.Sprintf("%s not reachable: %v", t.target(), err)
		return result
	}
	_ = conn.Close()

	result.Healthy = true
	result.Message = t.target() + " accepts connections"
	return result
}

func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// ProcessPortCheckers returns one checker per open port of process on host
func ProcessPortCheckers(host string, process domain.NodeProcess) []Checker {
	checkers := make([]Checker, 0, len(process.OpenPorts))
	for _, port := range process.OpenPorts {
		checker := NewTCPChecker(net.JoinHostPort(host, strconv.Itoa(port)))
		checker.Process = process.UIName
		checkers = append(checkers, checker)
	}
	return checkers
}

package cec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Transport runs one cec-client invocation and returns its combined
// output. The gateway never talks to the adapter any other way, so tests
// swap in a scripted Transport.
type Transport interface {
	Exec(ctx context.Context, args []string, input string) (string, error)
}

// killGrace is how long a cancelled cec-client gets to exit before its
// output pipes are abandoned.
const killGrace = 2 * time.Second

// ProcessTransport spawns the cec-client binary for each call.
type ProcessTransport struct {
	Binary string
}

// NewProcessTransport returns a transport for binary ("cec-client" when empty).
func NewProcessTransport(binary string) *ProcessTransport {
	if binary == "" {
		binary = "cec-client"
	}
	return &ProcessTransport{Binary: binary}
}

// Exec runs the binary with args, writing input to stdin. The process runs
// in its own process group, and the whole group is killed when ctx ends.
func (p *ProcessTransport) Exec(ctx context.Context, args []string, input string) (string, error) {
	cmd := exec.CommandContext(ctx, p.Binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid signals the group created by Setpgid.
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
	cmd.WaitDelay = killGrace

	if input != "" {
		cmd.Stdin = strings.NewReader(input + "\n")
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out.String(), fmt.Errorf("%w: %s %s", ErrTimeout, p.Binary, strings.Join(args, " "))
		}
		return out.String(), ctx.Err()
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
		}
		return out.String(), fmt.Errorf("%w: %s exited: %w", ErrCommandFailed, p.Binary, err)
	}
	return out.String(), nil
}

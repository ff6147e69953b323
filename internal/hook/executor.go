package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrRejected is returned when the hook answers with success=false.
var ErrRejected = errors.New("hook rejected delivery")

// ErrTimeout is returned when the hook does not finish in time.
var ErrTimeout = errors.New("hook timed out")

// Executor runs the hook command with a timeout.
type Executor struct {
	command string
	args    []string
	timeout time.Duration
}

// NewExecutor creates an Executor for command. A non-positive timeout means
// five seconds.
func NewExecutor(command string, timeout time.Duration, args ...string) *Executor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Executor{
		command: command,
		args:    args,
		timeout: timeout,
	}
}

// Command returns the executable the Executor runs.
func (e *Executor) Command() string {
	return e.command
}

// Deliver runs the hook once with d on stdin and returns its parsed response.
// A response with success=false is returned together with an error wrapping
// ErrRejected.
func (e *Executor) Deliver(ctx context.Context, d Delivery) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.command, e.args...)

	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delivery: %w", err)
	}
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %v", ErrTimeout, e.timeout)
	}
	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("hook execution failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("hook execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse hook response: %w, stdout: %s", err, stdout.String())
	}

	if !response.Success {
		return &response, fmt.Errorf("%w: %s", ErrRejected, response.Error)
	}
	return &response, nil
}

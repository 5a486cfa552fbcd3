package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/projecteru2/cocoon/types"
)

const timeoutExitCode = 124

// runCommand executes argv in dir with stdout and stderr merged into one
// captured stream (never streamed to the caller), bounded by timeout. A
// timeout is reported as exit code 124, matching a shell's convention and
// the original implementation's behaviour, rather than as a distinct
// error — the step machine treats it identically to any other non-zero
// exit.
func runCommand(ctx context.Context, dir string, argv []string, timeout time.Duration) (*types.Execution, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...) //nolint:gosec // argv is synthesized internally, not user-supplied shell text
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	exitCode := 0
	switch {
	case runErr == nil:
	case cctx.Err() == context.DeadlineExceeded:
		exitCode = timeoutExitCode
		out.WriteString(fmt.Sprintf("\n[command timed out after %s]", timeout))
	default:
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run %v: %w", argv, runErr)
		}
	}

	return &types.Execution{ExitCode: exitCode, Stdout: out.String(), Command: argv}, nil
}

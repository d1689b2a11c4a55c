package cut

import (
	"bytes"
	"context"
	"io"
	"os/exec"
)

// Runner executes an external media tool, capturing stdout and stderr
// separately. The video engine inspects stderr for known failure substrings
// even when the process exits non-zero, so both buffers are returned
// alongside the error.
type Runner interface {
	Run(ctx context.Context, bin string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands through os/exec without a shell.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, bin string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdin = stdin
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

package blocker

import (
	"context"
	"os/exec"

	"github.com/Lattixe/MonkMode-windows/internal/interfaces"
)

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

var _ interfaces.CommandRunner = ExecRunner{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	hideConsole(cmd)
	return cmd.CombinedOutput()
}

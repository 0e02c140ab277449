package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// runCommand executes a synthesis binary with text on stdin and returns the
// raw bytes it wrote to stdout.
func runCommand(ctx context.Context, binary string, args []string, stdin string) ([]byte, error) {
	cmd := commandContext(ctx, binary, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return stdout.Bytes(), nil
}

func lookupBinary(name, binary string) error {
	if strings.TrimSpace(binary) == "" {
		return fmt.Errorf("%s binary not configured", name)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s binary %q not found", name, binary)
	}
	return nil
}

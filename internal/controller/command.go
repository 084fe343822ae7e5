package controller

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandController implements [Muter] and [Dimmer] by running
// user-configured shell commands. Typical configurations wrap amixer or
// pactl on Linux, osascript on macOS, or a smart-speaker CLI.
type CommandController struct {
	// MuteCmd and UnmuteCmd implement Mute/Unmute. Example:
	//   mute:   "pactl set-sink-mute @DEFAULT_SINK@ 1"
	//   unmute: "pactl set-sink-mute @DEFAULT_SINK@ 0"
	MuteCmd   string
	UnmuteCmd string

	// DimCmd and RestoreCmd implement Dim/Restore.
	DimCmd     string
	RestoreCmd string
}

// Mute implements [Muter].
func (c *CommandController) Mute(ctx context.Context) error {
	return c.run(ctx, "mute", c.MuteCmd)
}

// Unmute implements [Muter].
func (c *CommandController) Unmute(ctx context.Context) error {
	return c.run(ctx, "unmute", c.UnmuteCmd)
}

// Dim implements [Dimmer].
func (c *CommandController) Dim(ctx context.Context) error {
	return c.run(ctx, "dim", c.DimCmd)
}

// Restore implements [Dimmer].
func (c *CommandController) Restore(ctx context.Context) error {
	return c.run(ctx, "restore", c.RestoreCmd)
}

func (c *CommandController) run(ctx context.Context, op, command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("controller: no %s command configured", op)
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("controller: %s command failed: %w (output: %s)",
			op, err, strings.TrimSpace(string(out)))
	}
	return nil
}

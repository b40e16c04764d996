package workerclient

import (
	"context"
	"fmt"
	"os/exec"
)

// ExecRunner runs an external burn command for each image, e.g. a
// wrapper around cdrecord or growisofs. The actual disc-burning
// mechanics are outside this module's scope; ExecRunner is the default
// Runner that shells out to whatever command the operator configured.
type ExecRunner struct {
	// Command is the executable to run, e.g. "/usr/local/bin/do-burn".
	Command string
	// ImageDir is prepended to the image filename to build the path
	// passed to Command.
	ImageDir string
}

// Run shells out to r.Command with the image's full path as its only
// argument, and fails if the command exits non-zero.
func (r ExecRunner) Run(ctx context.Context, image string) error {
	path := image
	if r.ImageDir != "" {
		path = r.ImageDir + "/" + image
	}

	cmd := exec.CommandContext(ctx, r.Command, path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("burn command failed: %w: %s", err, output)
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/cruciblehq/fishbowl/internal"
)

// Represents the 'fishbowl version' command.
type VersionCmd struct{}

// Executes the version command.
func (c *VersionCmd) Run(ctx context.Context) error {
	return printResult(internal.Info(), func(w io.Writer) {
		fmt.Fprintln(w, internal.VersionString())
	})
}

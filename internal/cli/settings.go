package cli

import (
	"context"
	"io"

	"github.com/cruciblehq/fishbowl/internal/paths"
)

// Replaces secrets in printed configuration.
const redacted = "********"

// Represents the 'fishbowl settings' command.
type SettingsCmd struct {
	Path bool `help:"Print the configuration file path instead of its contents."`
}

// Executes the settings command.
//
// Prints the configuration after defaults are applied, which is a valid
// starting point for a configuration file.
func (c *SettingsCmd) Run(ctx context.Context) error {
	if c.Path {
		path := RootCmd.Config
		if path == "" {
			path = paths.ConfigFile()
		}
		_, err := io.WriteString(stdout, path+"\n")
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Publish.SecretKey != "" {
		cfg.Publish.SecretKey = redacted
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	_, err = stdout.Write(data)
	return err
}

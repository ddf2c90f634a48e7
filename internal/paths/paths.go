package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "fishbowl"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Permission mode for files that may hold credentials.
	PrivateFileMode os.FileMode = 0600
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/fishbowl or /run/user/<uid>/fishbowl
//	macOS:   ~/Library/Caches/fishbowl/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, appName)
	}
	return filepath.Join(xdg.CacheHome, appName, "run")
}

// Default path to the daemon's Unix domain socket.
func Socket() string {
	return filepath.Join(Runtime(), "fishbowl.sock")
}

// Default path to the daemon PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), "fishbowl.pid")
}

// Default path to the configuration file.
//
//	Linux:   $XDG_CONFIG_HOME/fishbowl/config.yaml
//	macOS:   ~/Library/Application Support/fishbowl/config.yaml
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Default directory for exported runtime images, one subdirectory per
// architecture profile.
//
//	Linux:   $XDG_DATA_HOME/fishbowl/images
//	macOS:   ~/Library/Application Support/fishbowl/images
func Images() string {
	return filepath.Join(xdg.DataHome, appName, "images")
}

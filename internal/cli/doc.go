// Parses flags, configures logging, and runs fishbowl commands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	    --json      Write log records and results as JSON.
//	-c, --config    Configuration file path.
//	-s, --socket    Daemon socket path.
//	-D, --daemon    Send commands to a running daemon.
//
// Flags override build-time defaults set via linker flags. Without --daemon,
// commands connect to containerd directly using the loaded configuration.
// With it, the same commands are forwarded over the daemon socket, so a
// long-running daemon can hold the containerd connection and serve several
// clients.
package cli

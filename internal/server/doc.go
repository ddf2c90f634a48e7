// Package server implements the fishbowl daemon.
//
// The daemon is the orchestrator that drives idle engine containers. It
// listens on a Unix domain socket for JSON-encoded commands. Each
// connection carries a single request-response exchange: the client sends a
// newline-delimited JSON envelope, the server dispatches the command, and
// writes the result back before closing the connection. Closing the
// connection early cancels the command.
//
// Commands build runtime images, start and stop the idle container, query
// its readiness, run the engine inside it, and report daemon status or shut
// the daemon down. All of them are delegated to the service package.
//
// Example usage:
//
//	srv, err := server.New(server.Config{Settings: cfg})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	srv.Wait()
package server

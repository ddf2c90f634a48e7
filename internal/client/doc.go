// Package client talks to the fishbowl daemon over its Unix socket.
//
// Each call opens a connection, writes one request envelope, and reads one
// response. Cancelling the context closes the connection, which makes the
// daemon cancel the command.
package client

// Package protocol defines the messages exchanged over the fishbowl daemon
// socket.
//
// Each connection carries one exchange. The client writes a single
// newline-terminated JSON [Envelope] naming a command and carrying its
// payload; the daemon answers with one envelope whose command is either
// [CmdOK] or [CmdError].
//
//	{"command":"predict","payload":{"name":"stockfish-engine","depth":18}}
//	{"command":"ok","payload":{"bestmove":"e2e4","ponder":"e7e5","evaluation":{...}}}
package protocol

package uci

import "errors"

var (
	ErrEngine     = errors.New("engine failed")
	ErrNoBestMove = errors.New("engine did not report a best move")
	ErrRequest    = errors.New("invalid request")
)

// Package uci drives a UCI chess engine running inside an idle container.
//
// Every request starts a fresh engine process through an [Execer] with its
// own stdin and stdout, writes the command sequence built by [Commands],
// and reads the engine output until it reports a best move. Nothing is
// shared between requests except the engine binary itself.
//
//	s := uci.NewSession(ctr, "/usr/local/bin/stockfish")
//	p, err := s.Predict(ctx, uci.Request{Depth: 18})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(p.BestMove, p.Evaluation.Score)
//
// Evaluations come from "info ... score" lines. The deepest one wins, and
// when two share a depth the later line is kept. Centipawn scores are
// reported in pawns.
package uci

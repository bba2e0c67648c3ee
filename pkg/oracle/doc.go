// Package oracle turns the game's append-only log file into a stream
// of structured events.
//
// This package allows you to:
//   - Follow the live log file and receive events as they happen
//   - Parse a complete log file offline
//   - Supply your own parsers or enrich events with item metadata
//
// # Basic Usage
//
// To follow the log in real time:
//
//	p, err := oracle.NewPipeline(logPath,
//	    oracle.WithPositionPath("data/position.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	events, errs, err := p.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    select {
//	    case ev, ok := <-events:
//	        if !ok {
//	            return
//	        }
//	        fmt.Printf("%s %v\n", ev.Type, ev.Data)
//	    case err, ok := <-errs:
//	        if !ok {
//	            return
//	        }
//	        log.Printf("error: %v", err)
//	    }
//	}
//
// To parse a finished log file:
//
//	events, err := oracle.ParseFile(path)
//
// # Custom Parsers
//
// Implement the [Parser] interface and pass the set with
// [WithParsers]; the slice order is the dispatch priority. Parsers are
// stateful line FSMs: Recognizes must be cheap, Feed may accumulate
// state across lines before emitting, and Reset is called on a stream
// discontinuity.
package oracle

// Command vecgather serves scatter-gather search over sharded Valkey indexes.
//
// Usage:
//
//	vecgather serve                 Run the HTTP API
//	vecgather search <query>        Run one search and print the merged hits
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// Command trackctl is S9: a demo CLI wiring one handler.TrackHandler to
// in-memory fakes and driving it interactively, the cobra-based
// successor to the teacher's examples/micro-client REPL loop.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// godotenv.Load never overrides variables already present in the
	// environment, matching the teacher's own best-effort .env loading.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

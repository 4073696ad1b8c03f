// Command mozcfilter filters candidate Japanese IME dictionary entries against
// the Mozc system dictionary.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp(os.Stdout, os.Stderr).execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mozcfilter: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

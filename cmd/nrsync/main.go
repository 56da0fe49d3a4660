// Command nrsync generates 5G-NR resource grids carrying SS/PBCH blocks and
// searches recorded grids for them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = []command{
	{"generate", "synthesize a frame grid and write it as .npy", runGenerate},
	{"detect", "search a grid file for SS/PBCH blocks", runDetect},
	{"serve", "run the receiver and expose it over HTTP", runServe},
	{"play", "play a grid through the sound card as OFDM", runPlay},
	{"candidates", "print SS/PBCH candidate symbol indices", runCandidates},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: nrsync <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.usage)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return fmt.Errorf("no command given")
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], stdout)
		}
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return nil
	}
	usage(stdout)
	return fmt.Errorf("unknown command %q", args[0])
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "nrsync: %v\n", err)
		os.Exit(1)
	}
}

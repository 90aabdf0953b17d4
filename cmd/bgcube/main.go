// Command bgcube simulates observation archives, builds cube background
// models per alt/az observation group and maintains the observation index.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
)

const usage = `Usage: bgcube <command> [flags]

Commands:
  simulate   write a simulated observation archive
  build      build background models for every observation group
  inspect    summarise a model file
  groups     list the observation groups in the index
  builds     list the recorded model builds
  migrate    manage the index schema (see: bgcube migrate help)
  version    print build information

Run "bgcube <command> -h" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("bgcube: %v", err)
	}
}

// run dispatches one subcommand. It is split out of main so tests can drive
// the whole command line.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(out, usage)
		return fmt.Errorf("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "simulate":
		return runSimulate(rest, out)
	case "build":
		return runBuild(ctx, rest, out)
	case "inspect":
		return runInspect(rest, out)
	case "groups":
		return runGroups(rest, out)
	case "builds":
		return runBuilds(rest, out)
	case "migrate":
		return runMigrate(rest, in, out)
	case "version":
		return runVersion(out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("bgcube "+name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

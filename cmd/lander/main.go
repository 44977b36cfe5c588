package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

const appName = "lander"

// SessionStartTime names the log file and flight logs of this run.
var SessionStartTime = time.Now()

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags] [args]

commands:
  fly                 fly a descent over kRPC
  simulate            fly a descent against the built-in simulated vehicle
  report <id...>      print stored landing reports as JSON
  version             print the version

flags:
  -config <dir>       directory containing %s (default ".")
  -tag <tag>          tag attached to an uploaded flight log
  -snapshot <file>    report: also copy the queried database into file
`, appName, "lander.cfg.json")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configDir := fs.String("config", ".", "Directory containing the config file.")
	tag := fs.String("tag", "", "Tag attached to an uploaded flight log.")
	snapshot := fs.String("snapshot", "", "Copy the queried flight log database into this file.")
	fs.Usage = usage
	_ = fs.Parse(os.Args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "fly":
		err = runFlight(ctx, *configDir, linkKRPC, *tag)
	case "simulate":
		err = runFlight(ctx, *configDir, linkSim, *tag)
	case "report":
		err = runReport(ctx, *configDir, fs.Args(), *snapshot, os.Stdout)
	case "version":
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildDate)
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", appName, command, err)
		os.Exit(1)
	}
}

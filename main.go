package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/armcore/arm7tdmi/api"
	"github.com/armcore/arm7tdmi/cli"
	"github.com/armcore/arm7tdmi/config"
	"github.com/armcore/arm7tdmi/controller"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		apiServer   = flag.Bool("api-server", false, "Start HTTP API server mode")
		apiPort     = flag.Int("port", 8080, "API server port (used with -api-server)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("ARM7TDMI emulator core %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		return
	}

	if *showHelp {
		printHelp()
		return
	}

	if *apiServer {
		runAPIServer(*apiPort)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config, using defaults: %v\n", err)
		cfg = config.DefaultConfig()
	}

	ctrl := controller.NewWithConfig(cfg)
	if flag.NArg() > 0 {
		if diags := ctrl.LoadProgram(controller.LoadProgramRequest{Path: flag.Arg(0)}); diags != nil {
			for _, d := range diags {
				fmt.Fprintf(os.Stderr, "line %d: %s\n", d.LineNumber, d.Message)
			}
			os.Exit(1)
		}
	}

	repl := cli.NewREPL(ctrl, os.Stdout)
	if err := repl.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runAPIServer(port int) {
	server := api.NewServerWithVersion(port, Version, Commit, Date)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var shutdownOnce sync.Once
	performShutdown := func() {
		shutdownOnce.Do(func() {
			fmt.Println("\nShutting down API server...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("API server stopped")
			os.Exit(0)
		})
	}

	// Detect an owning GUI process dying without a clean shutdown request.
	monitor := api.NewProcessMonitor(performShutdown)
	monitor.Start()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "API server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	performShutdown()
}

func printHelp() {
	fmt.Println(`ARM7TDMI emulator core

Usage:
  arm7tdmi [flags] [assembly-file]

Flags:`)
	flag.PrintDefaults()
	fmt.Println(`
If an assembly file is given, it is loaded before the interactive REPL
starts. REPL commands: load, step, run, reset, break, unbreak, continue,
input, regs, info, line, quit.`)
}

// Fee planner daemon.
//
// Usage:
//
//	feeplannerd [--rpc-endpoint=... --cache=...] Run the planner
//	feeplannerd --help                           Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stampchain-io/BTCStampsExplorer-sub010/config"
	"github.com/stampchain-io/BTCStampsExplorer-sub010/internal/planner"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p, err := planner.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := p.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		p.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	p.Stop()
}

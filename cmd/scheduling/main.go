// Package main starts the scheduling service.
//
// This process owns plan lifecycles, availability collection, and overlap
// reporting behind a JSON HTTP API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	schedulingcmd "github.com/huddlehq/huddle/internal/cmd/scheduling"
)

func main() {
	cfg, err := schedulingcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[SCHEDULING] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := schedulingcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

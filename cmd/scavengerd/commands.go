package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"scavenger/config"
	"scavenger/rpc"
	"scavenger/storage/eventlog"
)

// runExportEvents writes archived events matching the filter flags to a
// Parquet file.
func runExportEvents(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export-events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	out := fs.String("out", "events.parquet", "Destination Parquet file")
	from := fs.Uint64("from", 0, "First height to export")
	to := fs.Uint64("to", 0, "Last height to export (0 = head)")
	eventType := fs.String("type", "", "Only export events of this type")
	signer := fs.String("signer", "", "Only export events from calls signed by this address")
	topic := fs.String("topic", "", "Only export events carrying this topic")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *to > 0 && *from > *to {
		fmt.Fprintln(stderr, "--from must not exceed --to")
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.EventLog.Driver))
	if driver == "" || driver == "none" {
		fmt.Fprintln(stderr, "event archive disabled in config")
		return 1
	}
	store, err := eventlog.Open(driver, cfg.EventLog.DSN)
	if err != nil {
		fmt.Fprintf(stderr, "open event store: %v\n", err)
		return 1
	}
	defer store.Close()

	count, err := store.ExportParquet(context.Background(), eventlog.Filter{
		FromHeight: *from,
		ToHeight:   *to,
		Type:       strings.TrimSpace(*eventType),
		Signer:     strings.TrimSpace(*signer),
		Topic:      strings.TrimSpace(*topic),
	}, *out)
	if err != nil {
		fmt.Fprintf(stderr, "export events: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "exported %d events to %s\n", count, *out)
	return 0
}

// runAdminToken prints a bearer token for the host_pause and host_resume
// methods, signed with the configured admin secret.
func runAdminToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("admin-token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "./config.toml", "Path to the configuration file")
	subject := fs.String("subject", "operator", "Token subject")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *ttl <= 0 {
		fmt.Fprintln(stderr, "--ttl must be positive")
		return 2
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	token, err := rpc.IssueAdminToken(cfg.RPC.AdminSecret, *subject, *ttl)
	if err != nil {
		fmt.Fprintf(stderr, "issue token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

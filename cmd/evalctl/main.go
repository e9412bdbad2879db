package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/terra-clan/evalboard/pkg/client"
)

func main() {
	defaultAddr := os.Getenv("EVALBOARD_URL")
	if defaultAddr == "" {
		defaultAddr = "http://localhost:8080"
	}

	addr := flag.String("addr", defaultAddr, "evalboard server base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "per-request timeout")
	flag.Parse()

	// Logs go to stderr so they do not interleave with command output
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	api := client.NewClient(*addr, client.WithTimeout(*timeout))
	sh := newShell(api, strings.TrimRight(*addr, "/")+"/", os.Stdout)

	// Commands given as arguments run once, separated by ";"
	if args := flag.Args(); len(args) > 0 {
		for _, line := range strings.Split(strings.Join(args, " "), ";") {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			if err := sh.exec(ctx, line); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
		}
		return
	}

	fmt.Fprintf(os.Stdout, "connected to %s, type help for commands\n", *addr)
	if err := sh.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

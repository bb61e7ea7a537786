// backendprobe checks a Director API deployment from the command line: it
// reports health and a summary of the current twin feeds.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/danvoulez/lablab/internal/api"
	"github.com/danvoulez/lablab/internal/config"
	twinservice "github.com/danvoulez/lablab/internal/service/twin"
)

func main() {
	baseURL := flag.String("base-url", config.DefaultBaseURL, "Director API base URL")
	timeout := flag.Duration("timeout", config.DefaultTimeout, "per-call timeout")
	executionID := flag.String("execution", "", "also probe the twin feeds of one execution")
	flag.Parse()

	logger := zap.NewNop()
	gateway := api.New(*baseURL, *timeout, logger)
	ctx := context.Background()

	status, err := gateway.Health(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("backend %s: status=%s version=%s uptime=%s\n",
		*baseURL, status.Status, status.Version, (time.Duration(status.UptimeSeconds) * time.Second).String())

	store := twinservice.NewStore(gateway, logger)
	if err := store.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "twin refresh failed: %v\n", err)
		os.Exit(1)
	}

	snapshot := store.Snapshot()
	fmt.Printf("twin feeds: %d observations, %d divergences (%d critical, %d warning)\n",
		len(snapshot.Observations), len(snapshot.Divergences),
		len(store.CriticalDivergences()), len(store.WarningDivergences()))

	if *executionID != "" {
		observations, divergences, err := store.ExecutionTwinData(ctx, *executionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "execution %s twin fetch failed: %v\n", *executionID, err)
			os.Exit(1)
		}
		fmt.Printf("execution %s: %d observations, %d divergences\n", *executionID, len(observations), len(divergences))
	}
}

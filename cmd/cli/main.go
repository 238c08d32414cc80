package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btwitsvirendra/airavat-webhooks/config"
	"github.com/btwitsvirendra/airavat-webhooks/dispatch"
	"github.com/btwitsvirendra/airavat-webhooks/event"
	"github.com/btwitsvirendra/airavat-webhooks/internal/storage"
	"github.com/rs/zerolog"
)

/* cli triggers one event against the configured backend
 * usage: cli <event-type> '<json data>' [owner-id]
 * The running api's worker pool performs the deliveries
 */
func main() {
	if len(os.Args) < 3 {
		fmt.Println("usage: cli <event-type> '<json data>' [owner-id]")
		os.Exit(2)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if cfg.StorageDriver == config.DriverMemory {
		fmt.Println("the memory driver lives inside the api process; set STORAGE_DRIVER=postgres")
		os.Exit(1)
	}

	t, err := event.ParseType(os.Args[1])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	data := json.RawMessage(os.Args[2])
	if !json.Valid(data) {
		fmt.Println("data must be valid JSON")
		os.Exit(1)
	}

	var scope dispatch.Scope
	if len(os.Args) > 3 {
		scope.OwnerID = os.Args[3]
	}

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer backend.Close(ctx)

	logger := zerolog.New(os.Stderr).Level(cfg.Level()).With().Timestamp().Logger()
	d := dispatch.NewDispatcher(backend.Subscriptions, backend.Deliveries, backend.Events, backend.Queue, logger)

	res, err := d.Trigger(ctx, t, data, scope)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Printf("event %s dispatched to %d subscription(s)\n", res.EventID, res.DispatchedCount)
}

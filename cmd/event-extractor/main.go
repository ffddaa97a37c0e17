package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/clinicaleventflow/internal/config"
	"github.com/Lllllllleong/clinicaleventflow/internal/services"
)

var (
	extractorInstance *services.ExtractorFunction
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ExtractEvents", extractEvents)
}

// main is required by the Go Functions Framework.
func main() {}

// extractEvents is the Cloud Function entry point for finalized PDF uploads.
func extractEvents(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		cfg, err := config.Load("")
		if err != nil {
			initErr = err
			return
		}
		extractorInstance, initErr = services.NewExtractor(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Process logs its own failures with context.
	return extractorInstance.Process(ctx, gcsEvent)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/clinicaleventflow/internal/config"
	"github.com/Lllllllleong/clinicaleventflow/internal/gcp"
	"github.com/Lllllllleong/clinicaleventflow/internal/models"
	"github.com/Lllllllleong/clinicaleventflow/internal/services"
)

var (
	reportInstance *services.ReportFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleEventReport", handleEventReport)
}

func main() {}

// handleEventReport is the HTTP handler called by the downstream workflow.
func handleEventReport(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		cfg, err := config.Load("")
		if err != nil {
			initErr = err
			return
		}
		reportInstance, initErr = services.NewReport(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical: Report initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := reportInstance.Process(r.Context(), &req)
	if err != nil {
		code, message := errorResponse(err)
		http.Error(w, message, code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "documentId", req.DocumentID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}

// errorResponse maps a Process error to an HTTP status and message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMissingDocumentID):
		return http.StatusBadRequest, "Bad Request: documentId is required"
	case errors.Is(err, gcp.ErrJobNotFound):
		return http.StatusNotFound, "Not Found: unknown documentId"
	default:
		return http.StatusInternalServerError, "Internal Server Error: processing failed"
	}
}

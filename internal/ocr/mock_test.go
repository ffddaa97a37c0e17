package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

// mockBackend echoes the payload it receives, optionally failing for chosen payloads.
type mockBackend struct {
	Latency  func(payload string) time.Duration
	FailFor  map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu       sync.Mutex
	payloads []string
}

func (m *mockBackend) Process(ctx context.Context, content []byte, mimeType string) (string, error) {
	payload := string(content)
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.mu.Unlock()

	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if m.Latency != nil {
		select {
		case <-time.After(m.Latency(payload)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.FailFor[payload] {
		return "", fmt.Errorf("quota exceeded")
	}
	return "text of " + payload, nil
}

func (m *mockBackend) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

// rangeSplitter stands in for PDF extraction: the payload names the page range.
func rangeSplitter(doc *models.Document, b models.Batch) ([]byte, error) {
	if strings.HasPrefix(doc.Source, "broken") {
		return nil, fmt.Errorf("corrupt page tree")
	}
	return []byte("pages " + b.PageRange()), nil
}

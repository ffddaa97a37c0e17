package assemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
)

func event(n int) map[string]any {
	return map[string]any{
		"date":              fmt.Sprintf("07-%02d-2024", n),
		"description":       fmt.Sprintf("event %d", n),
		"medical_findings":  "findings",
		"diagnoses":         "diagnoses",
		"new_orders":        "orders",
		"follow_up_actions": "follow up",
	}
}

func TestEvents_PreservesEmissionOrder(t *testing.T) {
	// Deliberately not chronological.
	order := []int{5, 1, 9, 3, 3}
	items := make([]any, len(order))
	for i, n := range order {
		items[i] = event(n)
	}

	got, err := Events(map[string]any{"events": items})
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(got) != len(order) {
		t.Fatalf("len = %d, want %d", len(got), len(order))
	}
	for i, n := range order {
		if want := fmt.Sprintf("event %d", n); got[i].Description != want {
			t.Errorf("got[%d].Description = %q, want %q", i, got[i].Description, want)
		}
	}
}

func TestEvents_MapsEveryField(t *testing.T) {
	got, err := Events(map[string]any{"events": []map[string]any{event(1)}})
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	want := models.EventRecord{
		Date:            "07-01-2024",
		Description:     "event 1",
		MedicalFindings: "findings",
		Diagnoses:       "diagnoses",
		NewOrders:       "orders",
		FollowUpActions: "follow up",
	}
	if got[0] != want {
		t.Errorf("got %+v, want %+v", got[0], want)
	}

	out, err := json.Marshal(models.ExtractionOutput{Events: got})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string][]map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded["events"][0]) != 6 {
		t.Errorf("emitted object has %d fields, want 6: %s", len(decoded["events"][0]), out)
	}
}

func TestEvents_EmptyList(t *testing.T) {
	got, err := Events(map[string]any{"events": []any{}})
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestEvents_StructuralMismatch(t *testing.T) {
	missing := event(1)
	delete(missing, "new_orders")
	numeric := event(1)
	numeric["date"] = 7.0

	tests := []struct {
		name string
		args map[string]any
	}{
		{"no events key", map[string]any{"records": []any{}}},
		{"events is a string", map[string]any{"events": "[]"}},
		{"events is an object", map[string]any{"events": event(1)}},
		{"item is a string", map[string]any{"events": []any{"visit"}}},
		{"missing field", map[string]any{"events": []any{missing}}},
		{"non-string field", map[string]any{"events": []any{event(2), numeric}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Events(tt.args); !errors.Is(err, ErrStructuralMismatch) {
				t.Errorf("Events() error = %v, want ErrStructuralMismatch", err)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Run("four space indent", func(t *testing.T) {
		data, err := Encode(models.EventList{{Date: "07-01-2024", Description: "Admission"}})
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		want := "{\n    \"events\": [\n        {\n            \"date\": \"07-01-2024\",\n"
		if len(data) < len(want) || string(data[:len(want)]) != want {
			t.Errorf("Encode() = %s, want prefix %q", data, want)
		}
		if data[len(data)-1] != '\n' {
			t.Error("Encode() output does not end with a newline")
		}
	})

	t.Run("nil list is empty array", func(t *testing.T) {
		data, err := Encode(nil)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if string(data) != "{\n    \"events\": []\n}\n" {
			t.Errorf("Encode(nil) = %q", data)
		}
	})
}

// Package assemble turns add_to_database arguments into event records.
package assemble

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lllllllleong/clinicaleventflow/internal/models"
	"github.com/Lllllllleong/clinicaleventflow/internal/schema"
)

var ErrStructuralMismatch = errors.New("tool arguments do not hold a list of event objects")

// Events maps args["events"] to an EventList in the order the model emitted them.
// Values are copied verbatim.
func Events(args map[string]any) (models.EventList, error) {
	raw, ok := args[schema.EventsParam]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrStructuralMismatch, schema.EventsParam)
	}

	items, err := asList(raw)
	if err != nil {
		return nil, err
	}

	events := make(models.EventList, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: events[%d] is %T, not an object", ErrStructuralMismatch, i, item)
		}
		record, err := toRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		events = append(events, record)
	}
	return events, nil
}

func asList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, nil
	}
	return nil, fmt.Errorf("%w: %q is %T, not a list", ErrStructuralMismatch, schema.EventsParam, raw)
}

func toRecord(obj map[string]any) (models.EventRecord, error) {
	values := make(map[string]string, len(schema.EventFields))
	for _, name := range schema.FieldNames() {
		v, ok := obj[name]
		if !ok {
			return models.EventRecord{}, fmt.Errorf("%w: missing field %q", ErrStructuralMismatch, name)
		}
		s, ok := v.(string)
		if !ok {
			return models.EventRecord{}, fmt.Errorf("%w: field %q is %T, not a string", ErrStructuralMismatch, name, v)
		}
		values[name] = s
	}

	return models.EventRecord{
		Date:            values["date"],
		Description:     values["description"],
		MedicalFindings: values["medical_findings"],
		Diagnoses:       values["diagnoses"],
		NewOrders:       values["new_orders"],
		FollowUpActions: values["follow_up_actions"],
	}, nil
}

// Encode renders events as {"events": [...]} with four-space indentation.
// A nil list is written as an empty array.
func Encode(events models.EventList) ([]byte, error) {
	if events == nil {
		events = models.EventList{}
	}
	data, err := json.MarshalIndent(models.ExtractionOutput{Events: events}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events: %w", err)
	}
	return append(data, '\n'), nil
}

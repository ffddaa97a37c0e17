// Package schema declares the add_to_database tool the model is forced to call.
package schema

import (
	"encoding/json"

	"cloud.google.com/go/vertexai/genai"
)

const (
	ToolName        = "add_to_database"
	ToolDescription = "Inserts entries into the database."
	EventsParam     = "events"
)

// Field is one mandatory string property of an event object.
type Field struct {
	Name        string
	Description string
}

// EventFields lists the event properties in output order. Descriptions steer the
// model; nothing here checks that values actually match them.
var EventFields = []Field{
	{"date", "Date of the event, in MM-DD-YYYY format."},
	{"description", "Short description of the event, e.g. a consultation, a diagnostic test or a therapy."},
	{"medical_findings", "All medical findings from the event."},
	{"diagnoses", "Diagnoses made during the event, if any."},
	{"new_orders", "New orders for tests or treatments, if any."},
	{"follow_up_actions", "Recommended follow-up actions, if any."},
}

// FieldNames returns the event property names in declaration order.
func FieldNames() []string {
	names := make([]string, len(EventFields))
	for i, f := range EventFields {
		names[i] = f.Name
	}
	return names
}

// FunctionDeclaration renders the tool for Gemini.
func FunctionDeclaration() *genai.FunctionDeclaration {
	props := make(map[string]*genai.Schema, len(EventFields))
	for _, f := range EventFields {
		props[f.Name] = &genai.Schema{Type: genai.TypeString, Description: f.Description}
	}

	event := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   FieldNames(),
	}

	return &genai.FunctionDeclaration{
		Name:        ToolName,
		Description: ToolDescription,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				EventsParam: {
					Type:        genai.TypeArray,
					Description: "Every medical event found in the record, in the order encountered.",
					Items:       event,
				},
			},
			Required: []string{EventsParam},
		},
	}
}

// Tool wraps the declaration for a GenerativeModel's Tools list.
func Tool() *genai.Tool {
	return &genai.Tool{FunctionDeclarations: []*genai.FunctionDeclaration{FunctionDeclaration()}}
}

// JSONSchema renders the tool arguments as a JSON Schema document.
func JSONSchema() []byte {
	props := make(map[string]any, len(EventFields))
	for _, f := range EventFields {
		props[f.Name] = map[string]any{"type": "string", "description": f.Description}
	}

	doc := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			EventsParam: map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": props,
					"required":   FieldNames(),
				},
			},
		},
		"required": []string{EventsParam},
	}

	b, err := json.Marshal(doc)
	if err != nil {
		// Only static maps of strings are marshalled here.
		panic(err)
	}
	return b
}

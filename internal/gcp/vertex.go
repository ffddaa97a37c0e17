package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/clinicaleventflow/internal/schema"
)

// DefaultModel is the Gemini model used for event extraction.
const DefaultModel = "gemini-1.5-pro"

// --- Extractor Model Prompts ---
const ExtractorSystemPrompt = "You are a clinical records analyst preparing insurance claims. You read OCR text of inpatient records and record every distinct medical event by calling the add_to_database tool exactly once with all events. Never answer in prose."

// VertexClient holds the pre-configured generative model for the extraction stage.
type VertexClient struct {
	ExtractorModel *genai.GenerativeModel
	baseClient     *genai.Client
}

// NewVertexClient creates a client whose extractor model is forced to call the
// add_to_database tool.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	extractorModel := baseClient.GenerativeModel(modelName)
	extractorModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ExtractorSystemPrompt)},
	}
	extractorModel.Tools = []*genai.Tool{schema.Tool()}
	// Mode ANY forces a function call; the allow-list pins it to our one tool.
	extractorModel.ToolConfig = &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingAny,
			AllowedFunctionNames: []string{schema.ToolName},
		},
	}
	extractorModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	// Clinical records routinely describe injuries and medication; default
	// thresholds block them.
	extractorModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		ExtractorModel: extractorModel,
		baseClient:     baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

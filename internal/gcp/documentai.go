package gcp

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// DocumentAIClient sends raw documents to a Document AI OCR processor.
type DocumentAIClient struct {
	client        *documentai.DocumentProcessorClient
	processorName string
}

// ProcessorName builds the fully qualified processor resource name.
func ProcessorName(projectID, location, processorID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID)
}

// NewDocumentAIClient creates a client bound to the regional endpoint of the processor.
func NewDocumentAIClient(ctx context.Context, projectID, location, processorID string) (*DocumentAIClient, error) {
	if projectID == "" || location == "" || processorID == "" {
		return nil, fmt.Errorf("NewDocumentAIClient: projectID, location and processorID cannot be empty")
	}

	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}

	return &DocumentAIClient{
		client:        client,
		processorName: ProcessorName(projectID, location, processorID),
	}, nil
}

// Process runs OCR on content and returns the recognised text in reading order.
func (c *DocumentAIClient) Process(ctx context.Context, content []byte, mimeType string) (string, error) {
	req := &documentaipb.ProcessRequest{
		Name: c.processorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mimeType,
			},
		},
	}

	resp, err := c.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", fmt.Errorf("ProcessDocument: %w", err)
	}
	return documentText(resp.GetDocument())
}

// documentText rejects responses that carry neither text nor pages.
func documentText(doc *documentaipb.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("malformed response: no document")
	}
	if doc.GetText() == "" && len(doc.GetPages()) == 0 {
		return "", fmt.Errorf("malformed response: document has no pages")
	}
	return doc.GetText(), nil
}

func (c *DocumentAIClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/budgetbyte/budgetbyte/internal/ledger"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llava"

	// Long item lists are slow on local vision models
	ollamaTimeout = 180 * time.Second
)

// Ollama implements the Scanner interface using a local Ollama server.
// Any vision model works; llava and qwen2-vl read receipts best.
type Ollama struct {
	baseURL string
	model   string
	schema  json.RawMessage
	client  *http.Client
}

// NewOllama creates a new Ollama Scanner instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if modelName == "" {
		modelName = defaultOllamaModel
	}

	schema, err := receiptSchema()
	if err != nil {
		return nil, err
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		schema:  schema,
		client:  &http.Client{Timeout: ollamaTimeout},
	}, nil
}

// receiptSchema is the structured output format Ollama constrains the answer to.
// Categories are limited to the ones the ledger tracks.
func receiptSchema() (json.RawMessage, error) {
	categories := []string{ledger.Uncategorized.String()}
	for _, c := range ledger.Categories {
		categories = append(categories, c.String())
	}

	schema := map[string]any{
		"type":     "object",
		"required": []string{"store", "date", "items"},
		"properties": map[string]any{
			"store": map[string]any{"type": "string"},
			"date":  map[string]any{"type": "string"},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"name", "price", "quantity", "category", "total_price"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string"},
						"price":       map[string]any{"type": "number"},
						"quantity":    map[string]any{"type": "integer"},
						"category":    map[string]any{"type": "string", "enum": categories},
						"total_price": map[string]any{"type": "number"},
					},
				},
			},
		},
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshaling receipt schema: %w", err)
	}
	return data, nil
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ScanReceipt extracts the grocery lines of a receipt
func (o *Ollama) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	return scan(ctx, "ollama", imageData, contentType, o.generate)
}

func (o *Ollama) generate(ctx context.Context, pngData []byte) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:  o.model,
		Format: o.schema,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{
				Role:    "user",
				Content: receiptScanPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(msg))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return chatResp.Message.Content, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}

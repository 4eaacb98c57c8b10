package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/oukeidos/mqcomet/internal/apperrors"
	"github.com/oukeidos/mqcomet/internal/httpclient"
	"google.golang.org/api/option"
)

// Client asks a Gemini model to assess translations.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	// option.WithHTTPClient would bypass the library's API key header
	// injection, so timeouts are enforced through the context instead.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema
	model.SetTemperature(0)

	return &Client{
		client: client,
		model:  model,
		name:   modelName,
	}, nil
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"scores": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"id":    {Type: genai.TypeInteger},
					"score": {Type: genai.TypeNumber},
				},
				Required: []string{"id", "score"},
			},
		},
	},
	Required: []string{"scores"},
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

// ModelID returns the configured model identifier.
func (c *Client) ModelID() string {
	return c.name
}

// SetSystemInstruction sets the system prompt for the model.
func (c *Client) SetSystemInstruction(prompt string) {
	c.model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt)},
	}
}

// Judge is the interface the scoring layer depends on.
type Judge interface {
	Judge(ctx context.Context, request RequestData) (*ResponseData, error)
	SetSystemInstruction(prompt string)
	ModelID() string
}

var _ Judge = (*Client)(nil)

// Judge sends one batch and returns the model's per-item scores.
func (c *Client) Judge(ctx context.Context, request RequestData) (*ResponseData, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.model.GenerateContent(ctx, genai.Text(string(requestJSON)))
	if err != nil {
		return nil, classifyJudgeError(c.name, err)
	}

	text, err := extractResponseText(resp)
	if err != nil {
		return nil, apperrors.Validation(err)
	}
	responseData, err := DecodeResponse(text)
	if err != nil {
		return nil, err
	}

	if resp.UsageMetadata != nil {
		responseData.Usage = UsageMetadata{
			PromptTokenCount:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokenCount: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokenCount:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return responseData, nil
}

// DecodeResponse accepts {"scores":[...]} or a bare array of scores. The raw
// text is never included in the error.
func DecodeResponse(text string) (*ResponseData, error) {
	var responseData ResponseData
	if err := json.Unmarshal([]byte(text), &responseData); err == nil && responseData.Scores != nil {
		return &responseData, nil
	}
	var scores []SegmentScore
	if err := json.Unmarshal([]byte(text), &scores); err != nil {
		return nil, apperrors.Validation(fmt.Errorf("failed to unmarshal judge response: %w", err))
	}
	responseData.Scores = scores
	return &responseData, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			continue
		}
		var combined string
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				combined += string(text)
			}
		}
		if combined != "" {
			return combined, nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}

package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/technosupport/physical-mcp/internal/vision/jsonextract"
)

const defaultOpenAIModel = "gpt-4o-mini"
const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAICompatProvider speaks the OpenAI chat-completions-with-vision
// wire format, which is also implemented by Kimi, DeepSeek, Together,
// Groq and most self-hosted gateways — one HTTP client covers all of
// them, distinguished only by base URL.
type OpenAICompatProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAICompatProvider constructs a provider against baseURL
// (defaults to the official OpenAI endpoint when empty).
func NewOpenAICompatProvider(apiKey, model, baseURL string) *OpenAICompatProvider {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAICompatProvider{apiKey: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: DefaultCallTimeout}}
}

type openAIRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *openAIImgURL  `json:"image_url,omitempty"`
}

type openAIImgURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAICompatProvider) AnalyzeImage(ctx context.Context, imageB64, prompt string) (string, error) {
	body := openAIRequest{
		Model:     p.model,
		MaxTokens: 500,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIContentPart{
				{Type: "image_url", ImageURL: &openAIImgURL{URL: "data:image/jpeg;base64," + imageB64, Detail: "low"}},
				{Type: "text", Text: prompt},
			},
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling openai-compat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai-compat request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parsing openai-compat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai-compat api error (%d): %s: %s", resp.StatusCode, parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai-compat api error: status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai-compat response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (p *OpenAICompatProvider) AnalyzeImageJSON(ctx context.Context, imageB64, prompt string) (map[string]any, error) {
	text, err := p.AnalyzeImage(ctx, imageB64, prompt)
	if err != nil {
		return nil, err
	}
	return jsonextract.Extract(text)
}

func (p *OpenAICompatProvider) ProviderName() string {
	if p.baseURL != defaultOpenAIBaseURL {
		return fmt.Sprintf("openai-compatible (%s)", p.baseURL)
	}
	return "openai"
}

func (p *OpenAICompatProvider) ModelName() string { return p.model }

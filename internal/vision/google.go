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

const defaultGeminiModel = "gemini-2.0-flash"

// GoogleProvider talks to the Gemini generateContent REST API
// directly — no Google GenAI Go SDK appears in the example pack.
type GoogleProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGoogleProvider constructs a GoogleProvider.
func NewGoogleProvider(apiKey, model string) *GoogleProvider {
	if model == "" {
		model = defaultGeminiModel
	}
	return &GoogleProvider{apiKey: apiKey, model: model, client: &http.Client{Timeout: DefaultCallTimeout}}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *GoogleProvider) AnalyzeImage(ctx context.Context, imageB64, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: imageB64}},
				{Text: prompt},
			},
		}},
		GenerationConfig: geminiGenerationConfig{MaxOutputTokens: 500},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling gemini request: %w", err)
	}

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parsing gemini response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini api error (%d): %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api error: status %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini response had no content parts")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func (p *GoogleProvider) AnalyzeImageJSON(ctx context.Context, imageB64, prompt string) (map[string]any, error) {
	text, err := p.AnalyzeImage(ctx, imageB64, prompt)
	if err != nil {
		return nil, err
	}
	return jsonextract.Extract(text)
}

func (p *GoogleProvider) ProviderName() string { return "google" }
func (p *GoogleProvider) ModelName() string    { return p.model }

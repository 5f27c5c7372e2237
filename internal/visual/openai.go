package visual

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KevinDz11/nopro/internal/model"
	"github.com/sashabaranov/go-openai"
)

const visionPrompt = `You inspect product labels for Mexican regulatory marks.
List every conformity mark, certification logo, safety pictogram, recycling
symbol and brand you can see, and transcribe all legible text.

Respond with JSON only, in this exact shape:
{"labels":[{"name":"<mark or symbol>","confidence":<0..1>}],"raw_context_text":"<all legible text>"}

Use names such as "NOM", "NOM-NYCE", "NOM-CE", "NOM-UL", "NOM-ANCE",
"doble aislamiento", "riesgo electrico", "reciclaje", "RAEE", or the brand name.
Write "NOM-NYCE" only when the qualifier is printed next to the NOM mark.`

// OpenAIDetector asks a vision chat model for labels and label text
type OpenAIDetector struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	maxTokens int
}

// NewOpenAIDetector creates a detector backed by the chat completions API.
// httpClient may be nil.
func NewOpenAIDetector(cfg model.VisionConfig, httpClient *http.Client) (*OpenAIDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", model.ErrDetectorUnavailable)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}

	m := cfg.Model
	if m == "" {
		m = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIDetector{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     m,
		timeout:   timeout,
		maxTokens: 1000,
	}, nil
}

func (d *OpenAIDetector) Name() string { return "openai" }

// Detect sends the image inline as a data URL and validates the JSON reply
func (d *OpenAIDetector) Detect(ctx context.Context, img Image) (*Detection, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	mime := img.MIME
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: d.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a precise visual inspector. You never guess marks that are not visible.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		MaxTokens:   d.maxTokens,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := d.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	det, err := decodeDetection([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, err
	}
	det.Detector = d.Name()
	return det, nil
}

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// LLMOptions configures an LLM-backed classifier.
type LLMOptions struct {
	// Endpoint is the full Messages API URL.
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// LLM classifies tickets with a Messages-API compatible model.
type LLM struct {
	httpClient *http.Client
	opts       LLMOptions
}

// NewLLM builds a classifier. A nil httpClient gets one with opts.Timeout.
func NewLLM(httpClient *http.Client, opts LLMOptions) *LLM {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &LLM{httpClient: httpClient, opts: opts}
}

// ProviderError is returned (wrapped in ErrUnavailable) when the model
// API responds with a non-200 status.
type ProviderError struct {
	StatusCode int
	Type       string
	Message    string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("classifier: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("classifier: HTTP %d: %s", err.StatusCode, err.Message)
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messagesResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Classify sends the ticket to the model and parses its JSON verdict.
// Every failure, including an unparseable reply, is reported as
// ErrUnavailable.
func (c *LLM) Classify(ctx context.Context, title, description string) (Judgment, error) {
	wire := messagesRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		System:    systemPrompt,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: userPrompt(title, description)}},
		}},
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return Judgment{}, unavailable("marshaling request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Judgment{}, unavailable("creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicVersion)
	if c.opts.APIKey != "" {
		req.Header.Set("x-api-key", c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Judgment{}, unavailable("sending request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Judgment{}, unavailable("provider error", readProviderError(resp))
	}

	var decoded messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Judgment{}, unavailable("decoding response", err)
	}

	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseJudgment(text.String())
}

// ParseJudgment extracts a Judgment from model output. The reply may be
// wrapped in a markdown fence or surrounded by prose; the outermost JSON
// object is used. helpfulNotes and relatedSkills must both be present.
func ParseJudgment(raw string) (Judgment, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return Judgment{}, unavailable("parsing reply", errors.New("no JSON object in reply"))
	}

	var wire struct {
		Priority      string    `json:"priority"`
		HelpfulNotes  *string   `json:"helpfulNotes"`
		RelatedSkills *[]string `json:"relatedSkills"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &wire); err != nil {
		return Judgment{}, unavailable("parsing reply", err)
	}
	if wire.HelpfulNotes == nil || wire.RelatedSkills == nil {
		return Judgment{}, unavailable("parsing reply", errors.New("reply is missing helpfulNotes or relatedSkills"))
	}

	skills := make([]string, 0, len(*wire.RelatedSkills))
	for _, s := range *wire.RelatedSkills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return Judgment{
		Priority:      strings.TrimSpace(wire.Priority),
		HelpfulNotes:  strings.TrimSpace(*wire.HelpfulNotes),
		RelatedSkills: skills,
	}, nil
}

func unavailable(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, stage, err)
}

// readProviderError parses {"error":{"type":"...","message":"..."}} and
// falls back to the raw body.
func readProviderError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Type:       wireError.Error.Type,
			Message:    wireError.Error.Message,
		}
	}
	return &ProviderError{StatusCode: resp.StatusCode, Message: string(body)}
}

package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// llmTestServer starts a test server and returns a classifier pointed at it.
func llmTestServer(t *testing.T, handler http.HandlerFunc) *LLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewLLM(server.Client(), LLMOptions{
		Endpoint:  server.URL + "/v1/messages",
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 512,
	})
}

func replyWith(t *testing.T, text string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"content":     []map[string]any{{"type": "text", "text": text}},
			"stop_reason": "end_turn",
		})
	}
}

func TestLLMClassify(t *testing.T) {
	t.Parallel()

	classifier := llmTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("anthropic-version header missing")
		}
		var wire messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if wire.Model != "test-model" {
			t.Errorf("model = %q, want test-model", wire.Model)
		}
		if wire.MaxTokens != 512 {
			t.Errorf("max_tokens = %d, want 512", wire.MaxTokens)
		}
		if len(wire.Messages) != 1 || !strings.Contains(wire.Messages[0].Content[0].Text, "Login broken") {
			t.Errorf("ticket title missing from prompt: %+v", wire.Messages)
		}
		replyWith(t, `{"priority":"high","helpfulNotes":"Check the session cookie.","relatedSkills":["auth","cookies"]}`)(w, r)
	})

	judgment, err := classifier.Classify(context.Background(), "Login broken", "Users get logged out")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if judgment.Priority != "high" {
		t.Errorf("priority = %q, want high", judgment.Priority)
	}
	if judgment.HelpfulNotes != "Check the session cookie." {
		t.Errorf("helpfulNotes = %q", judgment.HelpfulNotes)
	}
	if len(judgment.RelatedSkills) != 2 || judgment.RelatedSkills[0] != "auth" {
		t.Errorf("relatedSkills = %v", judgment.RelatedSkills)
	}
}

func TestLLMClassifyFencedReply(t *testing.T) {
	t.Parallel()

	reply := "```json\n{\"priority\":\"urgent\",\"helpfulNotes\":\"n\",\"relatedSkills\":[\" db \", \"\"]}\n```"
	classifier := llmTestServer(t, replyWith(t, reply))

	judgment, err := classifier.Classify(context.Background(), "t", "d")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	// priority is passed through untouched; normalization belongs to the caller
	if judgment.Priority != "urgent" {
		t.Errorf("priority = %q, want urgent", judgment.Priority)
	}
	if len(judgment.RelatedSkills) != 1 || judgment.RelatedSkills[0] != "db" {
		t.Errorf("relatedSkills = %v, want [db]", judgment.RelatedSkills)
	}
}

func TestLLMClassifyProviderError(t *testing.T) {
	t.Parallel()

	classifier := llmTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := classifier.Classify(context.Background(), "t", "d")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError in chain, got %v", err)
	}
	if providerErr.StatusCode != http.StatusTooManyRequests || providerErr.Type != "rate_limit_error" {
		t.Errorf("unexpected provider error %+v", providerErr)
	}
}

func TestLLMClassifyTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	classifier := NewLLM(nil, LLMOptions{Endpoint: server.URL})

	_, err := classifier.Classify(context.Background(), "t", "d")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"plain", `{"priority":"low","helpfulNotes":"x","relatedSkills":[]}`, false},
		{"prose around", `Sure! {"priority":"low","helpfulNotes":"x","relatedSkills":["a"]} Hope that helps.`, false},
		{"missing priority is allowed", `{"helpfulNotes":"x","relatedSkills":["a"]}`, false},
		{"missing notes", `{"priority":"low","relatedSkills":["a"]}`, true},
		{"missing skills", `{"priority":"low","helpfulNotes":"x"}`, true},
		{"no json", `I cannot help with that.`, true},
		{"broken json", `{"priority":`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJudgment(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnavailable) {
					t.Errorf("expected ErrUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Classify(context.Background(), "t", "d")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

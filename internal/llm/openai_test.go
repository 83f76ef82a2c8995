package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oseghale/riskradar/internal/model"
)

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	}
}

func testRequest() ClassifyRequest {
	return ClassifyRequest{
		Event: model.ExternalEvent{
			ID:          "ev-1",
			Title:       "Regulator fines commercial bank over AML failures",
			Summary:     "The fine follows a two-year investigation.",
			SourceName:  "Reuters",
			PublishedAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		Organization: model.Organization{
			ID:              "org-1",
			Name:            "First Example Bank",
			InstitutionType: "commercial_bank",
			Industry:        "banking",
		},
		Risks: []model.Risk{
			{Code: "RISK-001", Title: "Regulatory non-compliance", Category: "compliance"},
		},
	}
}

func TestOpenAIProvider_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}

		content := `{"relevant": true, "summary": "Bank fined for AML failures.", "confidence": 85, "matches": [{"risk_code": "RISK-001", "reasoning": "Same regulatory exposure.", "likelihood_delta": 1, "impact_delta": 0, "confidence": 80}]}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse(content))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(model.LLMConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	got, err := provider.Classify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !got.Relevant {
		t.Error("Relevant = false, want true")
	}
	if len(got.Matches) != 1 || got.Matches[0].RiskCode != "RISK-001" {
		t.Errorf("unexpected matches: %+v", got.Matches)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", got.Model)
	}
}

func TestOpenAIProvider_MalformedResponseIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatResponse("I cannot produce JSON today."))
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(model.LLMConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	got, err := provider.Classify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("malformed content must not be a transport error, got %v", err)
	}
	if got.Relevant {
		t.Error("malformed content parsed as relevant")
	}
}

func TestOpenAIProvider_APIErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(model.LLMConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	if _, err := provider.Classify(context.Background(), testRequest()); err == nil {
		t.Error("expected error from non-2xx API response")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(model.LLMConfig{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	if _, err := NewProvider(model.LLMConfig{Provider: "mystery", APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuildPrompt_ListsRiskCodes(t *testing.T) {
	prompt := BuildPrompt(testRequest())
	for _, want := range []string{"RISK-001", "First Example Bank", "commercial_bank", "Regulator fines commercial bank"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

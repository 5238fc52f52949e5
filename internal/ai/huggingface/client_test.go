package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/pkg/aiinterface"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(&aiinterface.ClientConfig{
		APIKey:  "test-token",
		Model:   "test-model",
		BaseURL: baseURL,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(&aiinterface.ClientConfig{})
	if err == nil {
		t.Fatal("Expected error when token missing")
	}

	var clientErr *aiinterface.ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("Expected ClientError, got %T", err)
	}
	if clientErr.Type != aiinterface.ErrorTypeAuth {
		t.Errorf("Expected auth error type, got %s", clientErr.Type)
	}
}

func TestClient_ChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Expected Authorization header")
		}

		var req hfGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		// 消息列表被拼接为一段提示词
		if req.Inputs != "system prompt\n\nuser question" {
			t.Errorf("拼接后的提示词不正确: %q", req.Inputs)
		}
		if req.Parameters.MaxNewTokens != 256 {
			t.Errorf("Expected max_new_tokens 256, got %d", req.Parameters.MaxNewTokens)
		}

		json.NewEncoder(w).Encode(hfGenerateResponse{
			{GeneratedText: "  generated answer  "},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{
			{Role: "system", Content: "system prompt"},
			{Role: "user", Content: "user question"},
		},
		MaxTokens: 256,
	})
	if err != nil {
		t.Fatalf("ChatCompletion() error = %v", err)
	}
	if resp.Content != "generated answer" {
		t.Errorf("回复应去除首尾空白: %q", resp.Content)
	}
}

func TestClient_ChatCompletion_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{{Role: "user", Content: "q"}},
	})
	if err == nil {
		t.Fatal("Expected error on 429")
	}

	var clientErr *aiinterface.ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("Expected ClientError, got %T", err)
	}
	if clientErr.Type != aiinterface.ErrorTypeRateLimit {
		t.Errorf("Expected rate limit error type, got %s", clientErr.Type)
	}
}

func TestClient_ChatCompletion_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(hfGenerateResponse{})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.ChatCompletion(context.Background(), &aiinterface.ChatCompletionRequest{
		Messages: []aiinterface.Message{{Role: "user", Content: "q"}},
	})
	if err == nil {
		t.Fatal("Expected error on empty response")
	}
}

func TestFlattenMessages_SkipsEmpty(t *testing.T) {
	flat := flattenMessages([]aiinterface.Message{
		{Role: "system", Content: "a"},
		{Role: "user", Content: "   "},
		{Role: "user", Content: "b"},
	})
	if flat != "a\n\nb" {
		t.Errorf("空消息应被跳过: %q", flat)
	}
}

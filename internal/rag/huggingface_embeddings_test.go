package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHuggingFaceEmbeddingProvider_Defaults(t *testing.T) {
	provider := NewHuggingFaceEmbeddingProvider(&HuggingFaceEmbeddingConfig{
		APIKey: "test-key",
	})

	if provider.GetModel() != "sentence-transformers/all-MiniLM-L6-v2" {
		t.Errorf("默认模型不正确: %s", provider.GetModel())
	}
	if provider.GetProviderName() != "huggingface" {
		t.Errorf("提供者名称不正确: %s", provider.GetProviderName())
	}
}

func TestHuggingFaceEmbeddingProvider_EmbedBatch(t *testing.T) {
	// 创建模拟服务器
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header")
		}

		var req hfEmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Options.WaitForModel {
			t.Errorf("Expected wait_for_model option")
		}

		// 按输入顺序返回二维数组
		resp := make([][]float32, len(req.Inputs))
		for i := range req.Inputs {
			resp[i] = []float32{float32(i), 0.5}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider := NewHuggingFaceEmbeddingProvider(&HuggingFaceEmbeddingConfig{
		APIKey:  "test-key",
		Model:   "test-model",
		BaseURL: server.URL,
	})

	embeddings, err := provider.EmbedBatch(context.Background(), []string{"oil", "brake"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(embeddings) != 2 {
		t.Fatalf("Expected 2 embeddings, got %d", len(embeddings))
	}
	if embeddings[1][0] != 1 {
		t.Errorf("向量顺序与输入不一致")
	}
}

func TestHuggingFaceEmbeddingProvider_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	provider := NewHuggingFaceEmbeddingProvider(&HuggingFaceEmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	vec, err := provider.Embed(context.Background(), "oil")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("Expected dimension 3, got %d", len(vec))
	}
}

func TestHuggingFaceEmbeddingProvider_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model loading"}`))
	}))
	defer server.Close()

	provider := NewHuggingFaceEmbeddingProvider(&HuggingFaceEmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	if _, err := provider.EmbedBatch(context.Background(), []string{"oil"}); err == nil {
		t.Fatal("Expected error on API failure")
	}
}

func TestHuggingFaceEmbeddingProvider_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{0.1}})
	}))
	defer server.Close()

	provider := NewHuggingFaceEmbeddingProvider(&HuggingFaceEmbeddingConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
	})

	if _, err := provider.EmbedBatch(context.Background(), []string{"oil", "brake"}); err == nil {
		t.Fatal("Expected count mismatch error")
	}
}

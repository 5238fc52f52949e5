package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	// 配置文件缺失时只使用默认值与环境变量
	cfg, err := Load("no-such-env", "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.CORS.AllowOrigins)
	assert.Contains(t, cfg.CORS.AllowMethods, "OPTIONS")
	assert.Equal(t, 600, cfg.CORS.MaxAge)

	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, 500, cfg.RAG.MaxEnrichedRows)
	assert.Equal(t, "HF_TOKEN", cfg.RAG.Embedding.APIKeyEnv)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", cfg.RAG.Embedding.Model)

	assert.Equal(t, "GROQ_API_KEY", cfg.AI.Groq.APIKeyEnv)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.AI.Groq.BaseURL)
	assert.Equal(t, "llama3-8b-8192", cfg.AI.Groq.Model)
	assert.Equal(t, "microsoft/Phi-3-mini-4k-instruct", cfg.AI.HuggingFace.Model)
	assert.Equal(t, 512, cfg.AI.MaxTokens)
	assert.Equal(t, 30*time.Second, cfg.AI.CallTimeout())
}

func TestLoad_FromFile(t *testing.T) {
	content := `
server:
  port: 9090
  mode: release

rag:
  top_k: 5
  instruction_path: data/custom.jsonl

query_log:
  enabled: true
  db_path: /tmp/ql.db
`
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load("test", path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "data/custom.jsonl", cfg.RAG.InstructionPath)
	assert.True(t, cfg.QueryLog.Enabled)

	// 未写入的键仍取默认值
	assert.Equal(t, 500, cfg.RAG.MaxEnrichedRows)
	assert.Equal(t, "llama3-8b-8192", cfg.AI.Groq.Model)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "7070")

	cfg, err := Load("no-such-env", "")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestGet_AfterLoad(t *testing.T) {
	cfg, err := Load("no-such-env", "")
	require.NoError(t, err)
	assert.Same(t, cfg, Get())
}

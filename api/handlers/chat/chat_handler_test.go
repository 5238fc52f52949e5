package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend/internal/ai"
	"backend/internal/chatbot"
	"backend/internal/logger"
	"backend/internal/querylog"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixedRetriever struct {
	chunks []string
}

func (f *fixedRetriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	return f.chunks, nil
}

type recordingRetriever struct {
	lastK int
}

func (r *recordingRetriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	r.lastK = k
	return []string{"ctx"}, nil
}

func newTestRouter(t *testing.T, retriever chatbot.ChunkRetriever, queryLog *querylog.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, logger.Init("error", "console", "stderr"))

	assistant := chatbot.New(chatbot.Options{
		Backend:   ai.BackendRuleBased,
		Retriever: retriever,
	})
	handler := NewChatHandler(assistant, retriever, queryLog, 3)

	router := gin.New()
	router.POST("/api/chat", handler.Chat)
	router.POST("/api/retrieve", handler.Retrieve)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatHandler_Chat(t *testing.T) {
	retriever := &fixedRetriever{chunks: []string{"Change oil every 5000 km."}}
	router := newTestRouter(t, retriever, nil)

	w := postJSON(t, router, "/api/chat", gin.H{"query": "when to change oil"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Response     string `json:"response"`
		MemoryLength int    `json:"memory_length"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Response, "Based on our vehicle maintenance knowledge base:")
	assert.Equal(t, 2, resp.MemoryLength)
}

func TestChatHandler_ChatMemoryAccumulates(t *testing.T) {
	router := newTestRouter(t, &fixedRetriever{chunks: []string{"ctx"}}, nil)

	postJSON(t, router, "/api/chat", gin.H{"query": "first"})
	w := postJSON(t, router, "/api/chat", gin.H{"query": "second"})

	var resp struct {
		MemoryLength int `json:"memory_length"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.MemoryLength)
}

func TestChatHandler_ChatMissingQuery(t *testing.T) {
	router := newTestRouter(t, &fixedRetriever{}, nil)

	w := postJSON(t, router, "/api/chat", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestChatHandler_Retrieve(t *testing.T) {
	retriever := &fixedRetriever{chunks: []string{"chunk one", "chunk two"}}
	router := newTestRouter(t, retriever, nil)

	w := postJSON(t, router, "/api/retrieve", gin.H{"query": "oil", "top_k": 2})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Query           string   `json:"query"`
		RetrievedChunks []string `json:"retrieved_chunks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "oil", resp.Query)
	assert.Equal(t, []string{"chunk one", "chunk two"}, resp.RetrievedChunks)
}

func TestChatHandler_RetrieveClampsTopK(t *testing.T) {
	retriever := &recordingRetriever{}
	router := newTestRouter(t, retriever, nil)

	w := postJSON(t, router, "/api/retrieve", gin.H{"query": "oil", "top_k": 999})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxTopK, retriever.lastK)
}

func TestChatHandler_RetrieveMissingQuery(t *testing.T) {
	router := newTestRouter(t, &fixedRetriever{}, nil)

	w := postJSON(t, router, "/api/retrieve", gin.H{"top_k": 3})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_ChatWritesQueryLog(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:chat_handler_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&querylog.RagQueryLog{}))
	queryLog := querylog.NewService(db)

	retriever := &fixedRetriever{chunks: []string{"ctx"}}
	router := newTestRouter(t, retriever, queryLog)

	w := postJSON(t, router, "/api/chat", gin.H{"query": "battery lifespan"})
	require.Equal(t, http.StatusOK, w.Code)

	logs, err := queryLog.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "battery lifespan", logs[0].Query)
	assert.Equal(t, "rule-based", logs[0].Backend)
	assert.Equal(t, 1, logs[0].RetrievedCount)
	assert.False(t, logs[0].FallbackUsed)
}

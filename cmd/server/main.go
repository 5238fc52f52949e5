package main

// @title Vehicle Maintenance Assistant API
// @version 1.0
// @description 基于检索增强的车辆保养问答服务
// @BasePath /
// @schemes http

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"backend/api"
	"backend/internal/ai"
	"backend/internal/chatbot"
	"backend/internal/config"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/querylog"
	"backend/internal/rag"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量和 API 凭证
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	ctx := context.Background()

	// 3. 组装语料并构建检索器；嵌入凭证缺失时进入降级模式
	retriever := buildRetriever(ctx, cfg)
	metrics.IndexSize.Set(float64(retriever.Size()))

	// 4. 选择响应生成后端（Groq > HuggingFace > 规则回退）
	backend, client := buildBackend(cfg)
	logger.Info("响应生成后端已确定", zap.String("backend", string(backend)))

	// 5. 创建助手
	assistant := chatbot.New(chatbot.Options{
		Backend:   backend,
		Client:    client,
		Retriever: retriever,
		TopK:      cfg.RAG.TopK,
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.AI.CallTimeout(),
		Logger:    logger.Get(),
	})

	// 6. 查询日志（可选）
	var queryLog *querylog.Service
	if cfg.QueryLog.Enabled {
		queryLog, err = querylog.Open(cfg.QueryLog.DBPath)
		if err != nil {
			logger.Warn("查询日志初始化失败，已禁用", zap.Error(err))
			queryLog = nil
		}
	}

	// 7. 创建路由
	router := api.SetupRouter(cfg, assistant, retriever, queryLog)

	// 8. 创建 HTTP 服务器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 9. 启动服务器（goroutine）
	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 10. 优雅关闭
	gracefulShutdown(server, client)
}

// buildRetriever 组装语料并构建语义检索器
// 嵌入服务凭证缺失或索引构建失败时返回降级检索器，服务照常启动
func buildRetriever(ctx context.Context, cfg *config.Config) *rag.Retriever {
	chunks := rag.AssembleCorpus(rag.CorpusConfig{
		InstructionPath: cfg.RAG.InstructionPath,
		EnrichedPath:    cfg.RAG.EnrichedPath,
		MaxEnrichedRows: cfg.RAG.MaxEnrichedRows,
	})
	logger.Info("语料组装完成", zap.Int("chunks", len(chunks)))

	apiKey := lookupCredential(cfg.RAG.Embedding.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("嵌入服务凭证缺失，检索进入降级模式",
			zap.String("env_var", cfg.RAG.Embedding.APIKeyEnv),
		)
		return rag.NewStubRetriever()
	}

	provider := rag.NewHuggingFaceEmbeddingProvider(&rag.HuggingFaceEmbeddingConfig{
		APIKey:  apiKey,
		Model:   cfg.RAG.Embedding.Model,
		BaseURL: cfg.RAG.Embedding.BaseURL,
		Timeout: time.Duration(cfg.RAG.Embedding.Timeout) * time.Second,
	})

	retriever, err := rag.NewRetriever(ctx, provider, chunks, cfg.RAG.IndexDir)
	if err != nil {
		logger.Warn("向量索引构建失败，检索进入降级模式", zap.Error(err))
		return rag.NewStubRetriever()
	}

	logger.Info("向量索引就绪", zap.Int("size", retriever.Size()))
	return retriever
}

// buildBackend 按凭证优先级确定响应生成后端并创建客户端
func buildBackend(cfg *config.Config) (ai.Backend, ai.ModelClient) {
	groqKey := lookupCredential(cfg.AI.Groq.APIKeyEnv)
	hfKey := lookupCredential(cfg.AI.HuggingFace.APIKeyEnv)

	backend := ai.SelectBackend(groqKey, hfKey)

	var clientCfg *ai.ClientConfig
	switch backend {
	case ai.BackendGroq:
		clientCfg = &ai.ClientConfig{
			Provider: string(ai.BackendGroq),
			APIKey:   groqKey,
			BaseURL:  cfg.AI.Groq.BaseURL,
			Model:    cfg.AI.Groq.Model,
			Timeout:  cfg.AI.Timeout,
		}
	case ai.BackendHuggingFace:
		clientCfg = &ai.ClientConfig{
			Provider: string(ai.BackendHuggingFace),
			APIKey:   hfKey,
			BaseURL:  cfg.AI.HuggingFace.BaseURL,
			Model:    cfg.AI.HuggingFace.Model,
			Timeout:  cfg.AI.Timeout,
		}
	}

	client, err := ai.NewClient(backend, clientCfg)
	if err != nil {
		logger.Warn("远端客户端创建失败，回退规则合成", zap.Error(err))
		return ai.BackendRuleBased, nil
	}
	return backend, client
}

// lookupCredential 读取凭证环境变量
// HF_TOKEN 额外接受 HUGGINGFACE_TOKEN 作为别名
func lookupCredential(envName string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	if envName == "HF_TOKEN" {
		return os.Getenv("HUGGINGFACE_TOKEN")
	}
	return ""
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		} else {
			fmt.Printf("已加载环境变量文件: %s\n", path)
		}
	} else {
		fmt.Println("未找到 .env 文件，将仅使用系统环境变量和 config/* 配置")
	}
}

// resolveEnvPath 尝试从当前工作目录、可执行文件目录向上查找根目录 .env
func resolveEnvPath() string {
	candidates := collectEnvCandidates()
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		candidates = append(candidates, path)
	}

	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		traverse(filepath.Dir(exe))
	}

	return candidates
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server, client ai.ModelClient) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到关闭信号，服务器关闭中...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP 服务器关闭失败", zap.Error(err))
	}

	if client != nil {
		if err := client.Close(); err != nil {
			logger.Error("远端客户端关闭失败", zap.Error(err))
		}
	}

	logger.Info("服务器已退出")
}

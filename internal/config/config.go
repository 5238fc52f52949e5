package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	RAG      RagConfig      `mapstructure:"rag"`
	AI       AIConfig       `mapstructure:"ai"`
	QueryLog QueryLogConfig `mapstructure:"query_log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// CORSConfig 跨域配置
// allow_origins 为空时放行所有来源
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
	AllowHeaders []string `mapstructure:"allow_headers"`
	AllowMethods []string `mapstructure:"allow_methods"`
	MaxAge       int      `mapstructure:"max_age"` // 预检结果缓存秒数
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// RagConfig RAG 检索配置
type RagConfig struct {
	// 语料来源
	InstructionPath string `mapstructure:"instruction_path"` // JSONL 指令数据集路径
	EnrichedPath    string `mapstructure:"enriched_path"`    // 富化车辆记录 CSV 路径
	MaxEnrichedRows int    `mapstructure:"max_enriched_rows"` // 富化记录上限，默认 500

	// 索引缓存
	IndexDir string `mapstructure:"index_dir"` // 索引文件目录，空则不持久化

	// 检索参数
	TopK int `mapstructure:"top_k"` // 默认检索条数

	// 嵌入服务
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// EmbeddingConfig 嵌入模型配置
type EmbeddingConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"` // 凭证环境变量名，默认 HF_TOKEN
	Model     string `mapstructure:"model"`       // 默认 sentence-transformers/all-MiniLM-L6-v2
	BaseURL   string `mapstructure:"base_url"`
	Timeout   int    `mapstructure:"timeout"` // 秒
}

// AIConfig 远端文本生成配置
// Groq 优先于 HuggingFace；两者凭证都缺失时进入规则回退模式
type AIConfig struct {
	Groq        GroqConfig        `mapstructure:"groq"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
	Timeout     int               `mapstructure:"timeout"`    // 远端调用超时（秒），默认 30
	MaxTokens   int               `mapstructure:"max_tokens"` // 默认 512
}

// GroqConfig Groq 配置（OpenAI 兼容协议）
type GroqConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"` // 默认 GROQ_API_KEY
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"` // 默认 llama3-8b-8192
}

// HuggingFaceConfig HuggingFace Inference API 配置
type HuggingFaceConfig struct {
	APIKeyEnv string `mapstructure:"api_key_env"` // 默认 HF_TOKEN
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"` // 默认 microsoft/Phi-3-mini-4k-instruct
}

// QueryLogConfig 检索日志配置
type QueryLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"` // sqlite 文件路径
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_SERVER_PORT

	setDefaults(v)

	// 读取配置文件；文件缺失时仅使用默认值与环境变量
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults 设置可缺省项的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)

	v.SetDefault("cors.allow_headers", []string{
		"Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"Accept", "Origin", "Cache-Control", "X-Requested-With",
	})
	v.SetDefault("cors.allow_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("rag.max_enriched_rows", 500)
	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.embedding.api_key_env", "HF_TOKEN")
	v.SetDefault("rag.embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	v.SetDefault("rag.embedding.timeout", 30)

	v.SetDefault("ai.timeout", 30)
	v.SetDefault("ai.max_tokens", 512)
	v.SetDefault("ai.groq.api_key_env", "GROQ_API_KEY")
	v.SetDefault("ai.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("ai.groq.model", "llama3-8b-8192")
	v.SetDefault("ai.huggingface.api_key_env", "HF_TOKEN")
	v.SetDefault("ai.huggingface.model", "microsoft/Phi-3-mini-4k-instruct")
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// CallTimeout 远端调用超时时长
func (c *AIConfig) CallTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

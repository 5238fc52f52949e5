package querylog

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RagQueryLog 一次问答的检索与生成记录
type RagQueryLog struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Query          string    `gorm:"type:text;not null" json:"query"`
	TopK           int       `gorm:"not null" json:"top_k"`
	RetrievedCount int       `gorm:"not null" json:"retrieved_count"`
	Backend        string    `gorm:"size:32;index" json:"backend"`
	FallbackUsed   bool      `json:"fallback_used"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (RagQueryLog) TableName() string {
	return "rag_query_logs"
}

// Service 查询日志服务
// 记录失败不影响问答主流程，调用方只负责打日志
type Service struct {
	db *gorm.DB
}

// Open 打开 SQLite 数据库并迁移表结构
func Open(dbPath string) (*Service, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开查询日志数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&RagQueryLog{}); err != nil {
		return nil, fmt.Errorf("迁移查询日志表失败: %w", err)
	}
	return &Service{db: db}, nil
}

// NewService 使用已有连接创建服务（测试用）
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record 写入一条问答记录
func (s *Service) Record(ctx context.Context, entry *RagQueryLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("写入查询日志失败: %w", err)
	}
	return nil
}

// Recent 返回最近的 limit 条记录，按时间倒序
func (s *Service) Recent(ctx context.Context, limit int) ([]RagQueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []RagQueryLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("查询日志读取失败: %w", err)
	}
	return logs, nil
}

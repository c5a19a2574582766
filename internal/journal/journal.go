// Package journal 记录操作员动作的审计流水（sqlite + gorm）。
// 它只是审计记录，订单状态始终以远端快照为准。
package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Kind 动作类型。
type Kind string

const (
	KindMarkDelivered Kind = "mark_delivered"
	KindTimeEstimate  Kind = "time_estimate"
)

// Status 动作结果。
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusSkipped 本地判定为无需发送（已送达 / 已发送过）。
	StatusSkipped Status = "skipped"
)

// Entry 一次动作尝试。
type Entry struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AttemptID  string `gorm:"size:64;uniqueIndex;not null" json:"attempt_id"`
	Kind       Kind   `gorm:"size:32;not null;index" json:"kind"`
	OrderID    string `gorm:"size:64;not null;index" json:"order_id"`
	Detail     string `gorm:"size:255" json:"detail"`
	Status     Status `gorm:"size:16;not null;index" json:"status"`
	ErrorMsg   string `gorm:"size:255" json:"error_msg"`
	DurationMS int64  `gorm:"not null;default:0" json:"duration_ms"`
}

func (Entry) TableName() string { return "action_journal" }

// Journal 基于 gorm 的实现。
type Journal struct {
	db *gorm.DB
}

// Open 打开（必要时创建）sqlite 文件并自动建表。
func Open(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	return New(db)
}

// New 在已有连接上建表。
func New(db *gorm.DB) (*Journal, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record 写入一条流水。
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.AttemptID == "" {
		return fmt.Errorf("journal entry requires attempt_id")
	}
	return j.db.WithContext(ctx).Create(&e).Error
}

// Recent 按时间倒序返回最近 limit 条。orderID 非空时只看该订单。
func (j *Journal) Recent(ctx context.Context, orderID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := j.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if orderID != "" {
		q = q.Where("order_id = ?", orderID)
	}
	var list []Entry
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Close 关闭底层连接。
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Nop 未配置 JOURNAL_PATH 时使用，丢弃所有记录。
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]Entry, error) { return nil, nil }

func (Nop) Close() error { return nil }

package service

import (
	"context"
	"errors"

	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSubmissionNotFound 没有对应哈希的提交记录
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRecorder 保存已广播交易的记录
type SubmissionRecorder interface {
	Record(ctx context.Context, s *model.Submission) error
	FindByHash(ctx context.Context, hash string) (*model.Submission, error)
}

// SubmissionStore 基于 gorm 的实现
type SubmissionStore struct {
	db *gorm.DB
}

func NewSubmissionStore(db *gorm.DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// Record 哈希冲突时忽略, 同一交易只记录一次
func (s *SubmissionStore) Record(ctx context.Context, sub *model.Submission) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "tx_hash"}}, DoNothing: true}).
		Create(sub).Error
}

func (s *SubmissionStore) FindByHash(ctx context.Context, hash string) (*model.Submission, error) {
	var sub model.Submission
	err := s.db.WithContext(ctx).Where("tx_hash = ?", hash).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

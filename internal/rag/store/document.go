package store

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/pkg/utils/errors"
)

// DocumentStore 定义文档元数据存储接口。
type DocumentStore interface {
	Save(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context, offset, limit int) (*model.DocumentList, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// StatusUpdate 描述一次状态迁移，零值字段不更新（Reason 总是写入）。
type StatusUpdate struct {
	Status       model.DocumentStatus
	Reason       string
	ChunkCount   int
	OmittedCount int
}

// DocumentRepository 使用 GORM 实现 DocumentStore。
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓库。
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// AutoMigrate 创建或更新文档表。
func (r *DocumentRepository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.Document{}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Save 按 ID 插入或整体覆盖文档记录，重新入库时复用同一行。
func (r *DocumentRepository) Save(ctx context.Context, doc *model.Document) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"filename", "type", "mime_type", "size", "status", "reason",
				"chunk_count", "omitted_count", "job_id", "updated_at",
			}),
		}).
		Create(doc).Error
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// Get 根据 ID 查询文档。
func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDocNotFound
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &doc, nil
}

// List 按上传时间倒序分页查询文档。limit <= 0 时返回全部。
func (r *DocumentRepository) List(ctx context.Context, offset, limit int) (*model.DocumentList, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&total).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}

	items := make([]*model.Document, 0)
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id")
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &model.DocumentList{TotalCount: total, Items: items}, nil
}

// UpdateStatus 更新文档状态与计数。
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	values := map[string]any{
		"status": update.Status,
		"reason": update.Reason,
	}
	if update.ChunkCount > 0 {
		values["chunk_count"] = update.ChunkCount
	}
	if update.OmittedCount > 0 {
		values["omitted_count"] = update.OmittedCount
	}

	result := r.db.WithContext(ctx).Model(&model.Document{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrDocNotFound
	}
	return nil
}

// Delete 删除文档记录。
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{})
	if result.Error != nil {
		return errors.ErrDatabase.WithCause(result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrDocNotFound
	}
	return nil
}

// Count 返回文档总数。
func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&n).Error; err != nil {
		return 0, errors.ErrDatabase.WithCause(err)
	}
	return n, nil
}

var _ DocumentStore = (*DocumentRepository)(nil)

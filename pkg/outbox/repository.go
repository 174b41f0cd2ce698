package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboxRepository — репозиторий для работы с таблицей outbox.
type OutboxRepository struct {
	db            *gorm.DB
	aggregateType string
}

// NewOutboxRepository создаёт репозиторий для указанного типа агрегата.
func NewOutboxRepository(db *gorm.DB, aggregateType string) *OutboxRepository {
	return &OutboxRepository{db: db, aggregateType: aggregateType}
}

// Create вставляет запись в outbox. Вызывается внутри транзакции БД
// вместе с изменением агрегата — передавайте tx, а не общий *gorm.DB.
func (r *OutboxRepository) Create(ctx context.Context, tx *gorm.DB, o *Outbox) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.AggregateType == "" {
		o.AggregateType = r.aggregateType
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	model, err := toModel(o)
	if err != nil {
		return fmt.Errorf("сериализация outbox записи: %w", err)
	}

	if err := tx.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("вставка в outbox: %w", err)
	}
	return nil
}

// GetUnprocessed возвращает необработанные записи (FIFO по created_at).
func (r *OutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	var models []*OutboxModel
	err := r.db.WithContext(ctx).
		Where("aggregate_type = ? AND processed_at IS NULL", r.aggregateType).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("выборка из outbox: %w", err)
	}

	records := make([]*Outbox, 0, len(models))
	for _, m := range models {
		o, err := toDomain(m)
		if err != nil {
			return nil, fmt.Errorf("десериализация outbox записи %s: %w", m.ID, err)
		}
		records = append(records, o)
	}
	return records, nil
}

// MarkProcessed помечает запись как обработанную.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&OutboxModel{}).
		Where("id = ?", id).
		Update("processed_at", now)
	if result.Error != nil {
		return fmt.Errorf("обновление outbox записи: %w", result.Error)
	}
	return nil
}

// MarkFailed инкрементирует счётчик попыток и сохраняет последнюю ошибку.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, sendErr error) error {
	errText := sendErr.Error()
	result := r.db.WithContext(ctx).
		Model(&OutboxModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  errText,
		})
	if result.Error != nil {
		return fmt.Errorf("обновление outbox записи: %w", result.Error)
	}
	return nil
}

// DeleteProcessedBefore удаляет обработанные записи старше указанного времени.
// Удаление батчами по 1000 записей, чтобы не держать долгие блокировки.
func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for {
		result := r.db.WithContext(ctx).
			Where("aggregate_type = ? AND processed_at IS NOT NULL AND processed_at < ?", r.aggregateType, before).
			Limit(1000).
			Delete(&OutboxModel{})
		if result.Error != nil {
			return total, fmt.Errorf("очистка outbox: %w", result.Error)
		}
		total += result.RowsAffected
		if result.RowsAffected < 1000 {
			return total, nil
		}
	}
}

// Package repository содержит реализацию доступа к данным платёжного ядра.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/onboarding-platform/pkg/outbox"
	"example.com/onboarding-platform/services/payments/internal/domain"
)

// TransactionRepository определяет интерфейс для работы с транзакциями в БД.
type TransactionRepository interface {
	// Create создаёт новую транзакцию.
	Create(ctx context.Context, tx *domain.Transaction) error

	// GetByID возвращает транзакцию по ID.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// GetPendingByUser возвращает последнюю PENDING транзакцию пользователя.
	GetPendingByUser(ctx context.Context, userID string) (*domain.Transaction, error)

	// UpdateStatus сохраняет статус, метаданные и провайдерские поля
	// одним атомарным обновлением документа.
	UpdateStatus(ctx context.Context, tx *domain.Transaction) error

	// MarkPaid атомарно фиксирует оплату: обновление транзакции,
	// compare-and-set продвижение этапа пользователя и outbox-событие
	// в одной транзакции БД. Возвращает true, если этап продвинулся.
	MarkPaid(ctx context.Context, tx *domain.Transaction, event *outbox.Outbox) (bool, error)

	// MarkRefunded фиксирует возврат вместе с outbox-событием.
	MarkRefunded(ctx context.Context, tx *domain.Transaction, event *outbox.Outbox) error
}

// =============================================================================
// GORM модель
// =============================================================================

// TransactionModel — GORM модель таблицы transactions.
type TransactionModel struct {
	ID                   string     `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID               string     `gorm:"column:user_id;type:varchar(36);not null;index"`
	AmountCents          int64      `gorm:"column:amount_cents;not null"`
	Status               string     `gorm:"column:status;type:varchar(20);not null;index"`
	Gateway              string     `gorm:"column:gateway;type:varchar(20);not null"`
	Environment          string     `gorm:"column:environment;type:varchar(20);not null"`
	GatewayTransactionID string     `gorm:"column:gateway_transaction_id;type:varchar(64);index"`
	PreferenceID         string     `gorm:"column:preference_id;type:varchar(64)"`
	CheckoutURL          string     `gorm:"column:checkout_url;type:text"`
	Metadata             []byte     `gorm:"column:metadata;type:json"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	PaidAt               *time.Time `gorm:"column:paid_at"`
	RefundedAt           *time.Time `gorm:"column:refunded_at"`
}

// TableName возвращает имя таблицы в БД.
func (TransactionModel) TableName() string {
	return "transactions"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *TransactionModel) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:                   m.ID,
		UserID:               m.UserID,
		AmountCents:          m.AmountCents,
		Status:               domain.PaymentStatus(m.Status),
		Gateway:              m.Gateway,
		Environment:          m.Environment,
		GatewayTransactionID: m.GatewayTransactionID,
		PreferenceID:         m.PreferenceID,
		CheckoutURL:          m.CheckoutURL,
		Metadata:             m.Metadata,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		PaidAt:               m.PaidAt,
		RefundedAt:           m.RefundedAt,
	}
}

// transactionModelFromDomain конвертирует доменную сущность в GORM модель.
func transactionModelFromDomain(t *domain.Transaction) *TransactionModel {
	return &TransactionModel{
		ID:                   t.ID,
		UserID:               t.UserID,
		AmountCents:          t.AmountCents,
		Status:               string(t.Status),
		Gateway:              t.Gateway,
		Environment:          t.Environment,
		GatewayTransactionID: t.GatewayTransactionID,
		PreferenceID:         t.PreferenceID,
		CheckoutURL:          t.CheckoutURL,
		Metadata:             t.Metadata,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		PaidAt:               t.PaidAt,
		RefundedAt:           t.RefundedAt,
	}
}

// =============================================================================
// Реализация репозитория
// =============================================================================

// transactionRepository — GORM реализация TransactionRepository.
type transactionRepository struct {
	db         *gorm.DB
	outboxRepo *outbox.OutboxRepository
}

// NewTransactionRepository создаёт репозиторий транзакций.
func NewTransactionRepository(db *gorm.DB, outboxRepo *outbox.OutboxRepository) TransactionRepository {
	return &transactionRepository{db: db, outboxRepo: outboxRepo}
}

// Create создаёт новую транзакцию.
func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	model := transactionModelFromDomain(tx)

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	tx.CreatedAt = model.CreatedAt
	tx.UpdatedAt = model.UpdatedAt
	return nil
}

// GetByID возвращает транзакцию по ID.
func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var model TransactionModel

	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetPendingByUser возвращает последнюю PENDING транзакцию пользователя.
// Инвариант "одна активная транзакция на пользователя" не закреплён
// уникальным индексом: при создании платежа существующая PENDING
// транзакция переиспользуется вместо создания новой.
func (r *transactionRepository) GetPendingByUser(ctx context.Context, userID string) (*domain.Transaction, error) {
	var model TransactionModel

	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(domain.StatusPending)).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// UpdateStatus сохраняет статус и провайдерские поля транзакции.
func (r *transactionRepository) UpdateStatus(ctx context.Context, tx *domain.Transaction) error {
	return r.updateStatusTx(ctx, r.db, tx)
}

func (r *transactionRepository) updateStatusTx(ctx context.Context, db *gorm.DB, tx *domain.Transaction) error {
	tx.UpdatedAt = time.Now()

	result := db.WithContext(ctx).
		Model(&TransactionModel{}).
		Where("id = ?", tx.ID).
		Updates(map[string]interface{}{
			"status":                 string(tx.Status),
			"gateway_transaction_id": tx.GatewayTransactionID,
			"metadata":               tx.Metadata,
			"paid_at":                tx.PaidAt,
			"refunded_at":            tx.RefundedAt,
			"updated_at":             tx.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// MarkPaid фиксирует оплату атомарно: смена статуса транзакции,
// CAS-продвижение этапа пользователя (pagamento → acolhimento) и
// outbox-событие выполняются в одной транзакции БД. Повторная доставка
// "paid" вебхука после продвижения этапа даёт 0 затронутых строк в CAS
// и трактуется как benign no-op.
func (r *transactionRepository) MarkPaid(ctx context.Context, tx *domain.Transaction, event *outbox.Outbox) (bool, error) {
	stageAdvanced := false

	err := r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := r.updateStatusTx(ctx, dbTx, tx); err != nil {
			return err
		}

		result := dbTx.WithContext(ctx).
			Model(&UserModel{}).
			Where("id = ? AND current_stage = ?", tx.UserID, string(domain.StagePagamento)).
			Updates(map[string]interface{}{
				"payment_status":         string(domain.UserPaymentPaid),
				"current_stage":          string(domain.StageAcolhimento),
				"payment_transaction_id": tx.ID,
				"updated_at":             time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		stageAdvanced = result.RowsAffected > 0

		if event != nil {
			if err := r.outboxRepo.Create(ctx, dbTx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return stageAdvanced, nil
}

// MarkRefunded фиксирует возврат вместе с outbox-событием.
func (r *transactionRepository) MarkRefunded(ctx context.Context, tx *domain.Transaction, event *outbox.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(dbTx *gorm.DB) error {
		if err := r.updateStatusTx(ctx, dbTx, tx); err != nil {
			return err
		}
		if event != nil {
			if err := r.outboxRepo.Create(ctx, dbTx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

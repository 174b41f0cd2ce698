package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/onboarding-platform/services/payments/internal/domain"
)

// UserRepository — доступ к срезу записи пользователя, которым владеет
// онбординг. Платёжное ядро читает предусловия и мутирует только
// платёжные поля.
type UserRepository interface {
	// GetByID возвращает пользователя по ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// SetPendingTransaction привязывает pending транзакцию к пользователю.
	SetPendingTransaction(ctx context.Context, userID, transactionID string) error

	// MarkPaymentFailed помечает неудачную оплату, не трогая этап.
	MarkPaymentFailed(ctx context.Context, userID string) error
}

// =============================================================================
// GORM модель
// =============================================================================

// UserModel — GORM модель таблицы users (срез платёжных полей).
// Таблицей владеет онбординг-подсистема, миграции здесь не создаются.
type UserModel struct {
	ID                   string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Email                string    `gorm:"column:email;type:varchar(255)"`
	Name                 string    `gorm:"column:name;type:varchar(255)"`
	CurrentStage         string    `gorm:"column:current_stage;type:varchar(30)"`
	PaymentStatus        string    `gorm:"column:payment_status;type:varchar(10)"`
	PaymentTransactionID string    `gorm:"column:payment_transaction_id;type:varchar(36)"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

// TableName возвращает имя таблицы в БД.
func (UserModel) TableName() string {
	return "users"
}

// toDomain конвертирует GORM модель в доменную сущность.
func (m *UserModel) toDomain() *domain.User {
	return &domain.User{
		ID:                   m.ID,
		Email:                m.Email,
		Name:                 m.Name,
		CurrentStage:         domain.OnboardingStage(m.CurrentStage),
		PaymentStatus:        domain.UserPaymentStatus(m.PaymentStatus),
		PaymentTransactionID: m.PaymentTransactionID,
		UpdatedAt:            m.UpdatedAt,
	}
}

// =============================================================================
// Реализация репозитория
// =============================================================================

// userRepository — GORM реализация UserRepository.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID возвращает пользователя по ID.
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel

	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// SetPendingTransaction привязывает pending транзакцию к пользователю.
func (r *userRepository) SetPendingTransaction(ctx context.Context, userID, transactionID string) error {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"payment_transaction_id": transactionID,
			"payment_status":         string(domain.UserPaymentPending),
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// MarkPaymentFailed помечает неудачную оплату. Этап не меняется:
// пользователь остаётся на pagamento и может попробовать снова.
func (r *userRepository) MarkPaymentFailed(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&UserModel{}).
		Where("id = ? AND payment_status <> ?", userID, string(domain.UserPaymentPaid)).
		Updates(map[string]interface{}{
			"payment_status": string(domain.UserPaymentFailed),
			"updated_at":     time.Now(),
		})
	return result.Error
}

package domain

import "time"

// OnboardingStage — этап воронки онбординга франчайзи.
// Значения хранятся в users.current_stage как есть.
type OnboardingStage string

const (
	// StageRegistro — регистрация.
	StageRegistro OnboardingStage = "registro"

	// StageDocumentosPF — загрузка документов.
	StageDocumentosPF OnboardingStage = "documentos_pf"

	// StagePagamento — ожидание оплаты.
	StagePagamento OnboardingStage = "pagamento"

	// StageAcolhimento — приветственный этап после оплаты.
	StageAcolhimento OnboardingStage = "acolhimento"

	// StageCompleto — онбординг завершён.
	StageCompleto OnboardingStage = "completo"
)

// UserPaymentStatus — статус оплаты на записи пользователя.
// Упрощённый словарь для внешних потребителей: пользователь видит
// только pending / paid / failed, без провайдерских деталей.
type UserPaymentStatus string

const (
	UserPaymentPending UserPaymentStatus = "pending"
	UserPaymentPaid    UserPaymentStatus = "paid"
	UserPaymentFailed  UserPaymentStatus = "failed"
)

// User — срез записи пользователя, которым владеет онбординг.
// Платёжное ядро мутирует только платёжные поля и current_stage
// (переход pagamento → acolhimento при подтверждении оплаты).
type User struct {
	ID                   string
	Email                string
	Name                 string
	CurrentStage         OnboardingStage
	PaymentStatus        UserPaymentStatus
	PaymentTransactionID string
	UpdatedAt            time.Time
}

// CanStartPayment проверяет предусловия создания платежа: пользователь
// на этапе оплаты и ещё не оплатил.
func (u *User) CanStartPayment() error {
	if u.CurrentStage != StagePagamento {
		return ErrWrongStage
	}
	if u.PaymentStatus == UserPaymentPaid {
		return ErrAlreadyPaid
	}
	return nil
}

package service

import (
	"context"
	"sync"

	"example.com/onboarding-platform/pkg/outbox"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/gateway"
)

// =============================================================================
// Потокобезопасные моки репозиториев (in-memory)
// =============================================================================

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*domain.User{}}
}

func (r *mockUserRepo) put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.users[u.ID] = &copied
}

func (r *mockUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		copied := *u
		return &copied
	}
	return nil
}

func (r *mockUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u := r.get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *mockUserRepo) SetPendingTransaction(_ context.Context, userID, transactionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PaymentTransactionID = transactionID
	u.PaymentStatus = domain.UserPaymentPending
	return nil
}

func (r *mockUserRepo) MarkPaymentFailed(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok && u.PaymentStatus != domain.UserPaymentPaid {
		u.PaymentStatus = domain.UserPaymentFailed
	}
	return nil
}

type mockTxRepo struct {
	mu           sync.Mutex
	transactions map[string]*domain.Transaction
	users        *mockUserRepo
	events       []*outbox.Outbox

	markPaidFailures int
	markPaidErr      error
}

func newMockTxRepo(users *mockUserRepo) *mockTxRepo {
	return &mockTxRepo{transactions: map[string]*domain.Transaction{}, users: users}
}

func (r *mockTxRepo) put(tx *domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *tx
	r.transactions[tx.ID] = &copied
}

func (r *mockTxRepo) get(id string) *domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx, ok := r.transactions[id]; ok {
		copied := *tx
		return &copied
	}
	return nil
}

func (r *mockTxRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.EventType)
	}
	return types
}

func (r *mockTxRepo) Create(_ context.Context, tx *domain.Transaction) error {
	r.put(tx)
	return nil
}

func (r *mockTxRepo) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	if tx := r.get(id); tx != nil {
		return tx, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *mockTxRepo) GetPendingByUser(_ context.Context, userID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.transactions {
		if tx.UserID == userID && tx.Status == domain.StatusPending {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *mockTxRepo) UpdateStatus(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[tx.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	copied := *tx
	r.transactions[tx.ID] = &copied
	return nil
}

// failMarkPaid задаёт число предстоящих отказов MarkPaid
// (имитация временного сбоя БД).
func (r *mockTxRepo) failMarkPaid(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markPaidFailures = n
	r.markPaidErr = err
}

func (r *mockTxRepo) MarkPaid(_ context.Context, tx *domain.Transaction, event *outbox.Outbox) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markPaidFailures > 0 {
		r.markPaidFailures--
		return false, r.markPaidErr
	}
	if _, ok := r.transactions[tx.ID]; !ok {
		return false, domain.ErrTransactionNotFound
	}
	copied := *tx
	r.transactions[tx.ID] = &copied
	if event != nil {
		r.events = append(r.events, event)
	}

	// CAS этапа пользователя, как в SQL-реализации
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	u, ok := r.users.users[tx.UserID]
	if !ok || u.CurrentStage != domain.StagePagamento {
		return false, nil
	}
	u.CurrentStage = domain.StageAcolhimento
	u.PaymentStatus = domain.UserPaymentPaid
	u.PaymentTransactionID = tx.ID
	return true, nil
}

func (r *mockTxRepo) MarkRefunded(_ context.Context, tx *domain.Transaction, event *outbox.Outbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[tx.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	copied := *tx
	r.transactions[tx.ID] = &copied
	if event != nil {
		r.events = append(r.events, event)
	}
	return nil
}

// =============================================================================
// Мок фасада шлюзов
// =============================================================================

type stubGateway struct {
	name           domain.GatewayName
	checkoutResult *gateway.CheckoutResult
	statusResult   *gateway.StatusResult
	searchResult   *gateway.SearchResult
	refundResult   *gateway.RefundResult
}

func (g *stubGateway) Name() domain.GatewayName { return g.name }

func (g *stubGateway) CreateCheckout(context.Context, string, gateway.CheckoutRequest) (*gateway.CheckoutResult, error) {
	return g.checkoutResult, nil
}

func (g *stubGateway) CheckStatus(context.Context, string) (*gateway.StatusResult, error) {
	return g.statusResult, nil
}

func (g *stubGateway) SearchByReference(context.Context, string) (*gateway.SearchResult, error) {
	return g.searchResult, nil
}

func (g *stubGateway) Refund(context.Context, string, int64) (*gateway.RefundResult, error) {
	return g.refundResult, nil
}

type mockResolver struct {
	settings *domain.PaymentSettings
	gateway  *stubGateway
}

func (r *mockResolver) ActiveCredentials(context.Context) (*domain.PaymentSettings, error) {
	return r.settings, nil
}

func (r *mockResolver) Service(context.Context) (gateway.Gateway, error) {
	return r.gateway, nil
}

func (r *mockResolver) ServiceFor(_ context.Context, name domain.GatewayName) (gateway.Gateway, error) {
	if !name.IsValid() {
		return nil, domain.ErrUnknownGateway
	}
	return r.gateway, nil
}

package mercadopago

import "example.com/onboarding-platform/services/payments/internal/domain"

// statusMap — словарь статусов Mercado Pago → внутренний enum.
// Провайдер использует английские ключевые слова в нижнем регистре.
var statusMap = map[string]domain.PaymentStatus{
	"approved":     domain.StatusApproved,
	"authorized":   domain.StatusAuthorized,
	"pending":      domain.StatusPending,
	"in_process":   domain.StatusProcessing,
	"in_mediation": domain.StatusProcessing,
	"rejected":     domain.StatusDeclined,
	"cancelled":    domain.StatusCancelled,
	"refunded":     domain.StatusRefunded,
	"charged_back": domain.StatusRefunded,
}

// MapStatus нормализует статус Mercado Pago во внутренний enum.
// Словарь провайдера меняется без предупреждения: неизвестное
// значение всегда отображается в PENDING, никогда не ошибка.
func MapStatus(raw string) domain.PaymentStatus {
	status, _ := LookupStatus(raw)
	return status
}

// LookupStatus возвращает внутренний статус и признак того, что raw
// значение входит в известный словарь провайдера.
func LookupStatus(raw string) (domain.PaymentStatus, bool) {
	if status, ok := statusMap[raw]; ok {
		return status, true
	}
	return domain.StatusPending, false
}

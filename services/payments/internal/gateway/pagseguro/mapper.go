package pagseguro

import "example.com/onboarding-platform/services/payments/internal/domain"

// statusMap — словарь статусов PagSeguro → внутренний enum.
// Провайдер сообщает статус числовым кодом в строке:
//
//	1 — aguardando pagamento, 2 — em análise, 3 — paga,
//	4 — disponível, 5 — em disputa, 6 — devolvida, 7 — cancelada.
var statusMap = map[string]domain.PaymentStatus{
	"1": domain.StatusPending,
	"2": domain.StatusProcessing,
	"3": domain.StatusPaid,
	"4": domain.StatusApproved,
	"5": domain.StatusProcessing,
	"6": domain.StatusRefunded,
	"7": domain.StatusCancelled,
}

// MapStatus нормализует статус PagSeguro во внутренний enum.
// Неизвестное значение всегда отображается в PENDING.
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

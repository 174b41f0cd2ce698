package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/onboarding-platform/pkg/logger"
	"example.com/onboarding-platform/pkg/metrics"
	"example.com/onboarding-platform/services/payments/internal/domain"
	"example.com/onboarding-platform/services/payments/internal/repository"
)

const (
	// webhookDedupePrefix — префикс ключей дедупликации доставок в Redis.
	webhookDedupePrefix = "payments:webhook:"

	// webhookDedupeTTL — окно дедупликации повторных доставок.
	webhookDedupeTTL = 24 * time.Hour
)

// Исходы обработки вебхука (метка result в метриках).
const (
	OutcomeProcessed          = "processed"
	OutcomeUnchanged          = "unchanged"
	OutcomeDuplicate          = "duplicate"
	OutcomeNoReference        = "no_reference"
	OutcomeUnknownTransaction = "unknown_transaction"
)

// Notification — типизированное содержимое вебхука, извлечённое на
// границе. Сырой провайдерский payload дальше границы не проходит —
// только в metadata транзакции для аудита.
type Notification struct {
	ReferenceID          string // Внутренний id транзакции (external reference)
	GatewayTransactionID string // ID платежа на стороне провайдера
	RawStatus            string // Статус в словаре провайдера
}

// WebhookResult — итог обработки вебхука.
type WebhookResult struct {
	Outcome       string
	TransactionID string
	StageAdvanced bool
}

// WebhookService — приём и обработка провайдерских вебхуков.
type WebhookService interface {
	// VerifySignature проверяет HMAC-SHA256 подпись сырого тела.
	// Вызывается до любого парсинга payload. Единственная ошибка,
	// которая должна дать не-2xx ответ провайдеру.
	VerifySignature(body []byte, signature string) error

	// Process обрабатывает вебхук: извлечение reference, дедупликация
	// доставки, маппинг статуса, монотонное обновление транзакции и
	// продвижение этапа онбординга. Аномалии (нет reference, неизвестная
	// транзакция, повтор) — benign no-op, не ошибки: провайдер
	// повторяет доставку при не-2xx, и ретраи тут не нужны.
	Process(ctx context.Context, body []byte) (*WebhookResult, error)
}

// webhookService — реализация WebhookService.
type webhookService struct {
	statusUpdater

	redis  *redis.Client
	secret string
}

// NewWebhookService создаёт сервис вебхуков.
func NewWebhookService(
	txRepo repository.TransactionRepository,
	userRepo repository.UserRepository,
	redisClient *redis.Client,
	secret string,
) WebhookService {
	return &webhookService{
		statusUpdater: statusUpdater{txRepo: txRepo, userRepo: userRepo},
		redis:         redisClient,
		secret:        secret,
	}
}

// VerifySignature сверяет подпись constant-time сравнением.
// Пустой секрет отключает проверку: поведение исходной системы
// сохранено осознанно (см. DESIGN.md), с предупреждением в логе.
func (s *webhookService) VerifySignature(body []byte, signature string) error {
	if s.secret == "" {
		logger.Warn().Msg("Секрет вебхука не настроен, проверка подписи пропущена")
		return nil
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	got := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(got))) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Process обрабатывает вебхук.
func (s *webhookService) Process(ctx context.Context, body []byte) (*WebhookResult, error) {
	log := logger.Ctx(ctx)

	notification := parseNotification(body)
	if notification.ReferenceID == "" {
		// Нерелевантное или неразборчивое событие не должно вызывать
		// ретраи провайдера
		log.Info().Msg("Вебхук без reference id, подтверждён без обработки")
		metrics.RecordWebhookEvent("unknown", OutcomeNoReference)
		return &WebhookResult{Outcome: OutcomeNoReference}, nil
	}

	tx, err := s.txRepo.GetByID(ctx, notification.ReferenceID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			log.Info().
				Str("reference_id", notification.ReferenceID).
				Msg("Вебхук для неизвестной транзакции, подтверждён без обработки")
			metrics.RecordWebhookEvent("unknown", OutcomeUnknownTransaction)
			return &WebhookResult{Outcome: OutcomeUnknownTransaction}, nil
		}
		return nil, err
	}

	// Дедупликация повторных доставок по хэшу тела — после lookup,
	// чтобы метка provider в метрике несла реальный шлюз. Redis
	// недоступен — продолжаем: монотонный state machine и CAS этапа
	// защищают сами
	dedupeKey := deliveryKey(body)
	if dup := s.isDuplicateDelivery(ctx, dedupeKey); dup {
		log.Info().
			Str("transaction_id", tx.ID).
			Msg("Повторная доставка вебхука, пропущена")
		metrics.RecordWebhookEvent(tx.Gateway, OutcomeDuplicate)
		return &WebhookResult{Outcome: OutcomeDuplicate, TransactionID: tx.ID}, nil
	}

	if notification.GatewayTransactionID != "" {
		tx.GatewayTransactionID = notification.GatewayTransactionID
	}

	mapped := mapProviderStatus(domain.GatewayName(tx.Gateway), notification.RawStatus)
	result, err := s.apply(ctx, tx, mapped, body)
	if err != nil {
		// Ключ дедупликации снимается: хендлер ответит не-2xx, провайдер
		// повторит доставку, и повтор не должен утонуть как дубль
		s.releaseDelivery(ctx, dedupeKey)
		return nil, err
	}

	outcome := OutcomeUnchanged
	if result.Changed {
		outcome = OutcomeProcessed
	}
	metrics.RecordWebhookEvent(tx.Gateway, outcome)

	log.Info().
		Str("transaction_id", tx.ID).
		Str("raw_status", notification.RawStatus).
		Str("status", string(tx.Status)).
		Str("outcome", outcome).
		Msg("Вебхук обработан")

	return &WebhookResult{
		Outcome:       outcome,
		TransactionID: tx.ID,
		StageAdvanced: result.StageAdvanced,
	}, nil
}

// deliveryKey — ключ дедупликации по хэшу сырого тела.
func deliveryKey(body []byte) string {
	digest := sha256.Sum256(body)
	return webhookDedupePrefix + hex.EncodeToString(digest[:])
}

// isDuplicateDelivery регистрирует доставку через SETNX.
// При недоступности Redis доставка считается новой (fail-open).
func (s *webhookService) isDuplicateDelivery(ctx context.Context, key string) bool {
	if s.redis == nil {
		return false
	}

	wasSet, err := s.redis.SetNX(ctx, key, "1", webhookDedupeTTL).Result()
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Redis недоступен, дедупликация вебхука пропущена")
		return false
	}
	return !wasSet
}

// releaseDelivery снимает регистрацию доставки после сбоя обработки:
// повтор провайдера с тем же телом должен пройти заново, а не
// раствориться в дедупликации на все 24 часа TTL.
func (s *webhookService) releaseDelivery(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Не удалось снять ключ дедупликации вебхука")
	}
}

// =============================================================================
// Разбор payload
// =============================================================================

// parseNotification извлекает типизированное уведомление из сырого
// тела. Провайдеры шлют разными форматами: JSON (Mercado Pago) и
// form-encoded (PagSeguro); ключи перебираются по синонимам обоих.
func parseNotification(body []byte) Notification {
	if n, ok := parseJSONNotification(body); ok {
		return n
	}
	return parseFormNotification(body)
}

func parseJSONNotification(body []byte) (Notification, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Notification{}, false
	}

	n := Notification{
		ReferenceID:          stringField(payload, "external_reference", "reference_id", "reference"),
		GatewayTransactionID: stringField(payload, "transaction_code", "payment_id", "id"),
		RawStatus:            stringField(payload, "status"),
	}

	// Mercado Pago кладёт платёж во вложенный объект data
	if data, ok := payload["data"].(map[string]any); ok {
		if n.GatewayTransactionID == "" {
			n.GatewayTransactionID = stringField(data, "id")
		}
		if n.ReferenceID == "" {
			n.ReferenceID = stringField(data, "external_reference")
		}
		if n.RawStatus == "" {
			n.RawStatus = stringField(data, "status")
		}
	}
	return n, true
}

func parseFormNotification(body []byte) Notification {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Notification{}
	}
	return Notification{
		ReferenceID:          firstValue(values, "reference", "external_reference", "reference_id"),
		GatewayTransactionID: firstValue(values, "transactionCode", "notificationCode", "id"),
		RawStatus:            firstValue(values, "status"),
	}
}

// stringField возвращает первое непустое значение по списку ключей.
// Числовые значения (id у Mercado Pago) приводятся к строке.
func stringField(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func firstValue(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := values.Get(key); v != "" {
			return v
		}
	}
	return ""
}

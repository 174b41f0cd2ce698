package outbox

import (
	"context"
	"time"

	"example.com/onboarding-platform/pkg/kafka"
	"example.com/onboarding-platform/pkg/logger"
)

// KafkaProducer — интерфейс продюсера (для подмены в тестах).
type KafkaProducer interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// WorkerConfig — настройки воркера.
type WorkerConfig struct {
	PollInterval time.Duration // Интервал опроса outbox
	BatchSize    int           // Размер батча
	MaxRetries   int           // Максимум попыток отправки, дальше dead-letter
}

// DefaultWorkerConfig возвращает настройки по умолчанию.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 1 * time.Second,
		BatchSize:    100,
		MaxRetries:   5,
	}
}

const (
	cleanupInterval  = 1 * time.Hour
	cleanupRetention = 7 * 24 * time.Hour
)

// Worker читает необработанные записи из outbox и отправляет их в Kafka.
type Worker struct {
	repo     *OutboxRepository
	producer KafkaProducer
	cfg      WorkerConfig
}

// NewWorker создаёт воркер.
func NewWorker(repo *OutboxRepository, producer KafkaProducer, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultWorkerConfig().PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWorkerConfig().BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultWorkerConfig().MaxRetries
	}
	return &Worker{repo: repo, producer: producer, cfg: cfg}
}

// Run запускает цикл обработки. Блокирует до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	logger.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Outbox worker запущен")

	pollTicker := time.NewTicker(w.cfg.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Outbox worker остановлен")
			return
		case <-pollTicker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// processOutbox обрабатывает один батч записей.
func (w *Worker) processOutbox(ctx context.Context) {
	records, err := w.repo.GetUnprocessed(ctx, w.cfg.BatchSize)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка чтения outbox")
		return
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		w.ProcessSingle(ctx, record)
	}
}

// ProcessSingle отправляет одну запись в Kafka и обновляет её статус.
func (w *Worker) ProcessSingle(ctx context.Context, record *Outbox) {
	// Dead-letter: после MaxRetries попыток запись помечается обработанной,
	// чтобы не блокировать очередь. Ошибка сохранена в last_error.
	if record.RetryCount >= w.cfg.MaxRetries {
		logger.Warn().
			Str("outbox_id", record.ID).
			Str("event_type", record.EventType).
			Int("retry_count", record.RetryCount).
			Msg("Запись outbox превысила лимит попыток, пропускаем (dead-letter)")
		if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
			logger.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка пометки dead-letter записи")
		}
		return
	}

	if err := w.sendToKafka(ctx, record); err != nil {
		logger.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Str("event_type", record.EventType).
			Int("retry_count", record.RetryCount+1).
			Msg("Ошибка отправки события в Kafka")
		if markErr := w.repo.MarkFailed(ctx, record.ID, err); markErr != nil {
			logger.Error().Err(markErr).Str("outbox_id", record.ID).Msg("Ошибка обновления retry_count")
		}
		return
	}

	if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
		logger.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка пометки записи обработанной")
		return
	}

	logger.Debug().
		Str("outbox_id", record.ID).
		Str("event_type", record.EventType).
		Str("topic", record.Topic).
		Msg("Событие отправлено в Kafka")
}

// sendToKafka формирует Kafka сообщение из записи outbox.
func (w *Worker) sendToKafka(ctx context.Context, record *Outbox) error {
	msg := &kafka.Message{
		Topic:   record.Topic,
		Key:     []byte(record.MessageKey),
		Value:   record.Payload,
		Headers: record.Headers,
	}
	return w.producer.SendMessage(ctx, msg)
}

// cleanup удаляет старые обработанные записи.
func (w *Worker) cleanup(ctx context.Context) {
	deleted, err := w.repo.DeleteProcessedBefore(ctx, time.Now().Add(-cleanupRetention))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Msg("Очистка outbox завершена")
	}
}

// Package circuitbreaker предоставляет Circuit Breaker для исходящих HTTP
// вызовов к платёжным провайдерам.
//
// Состояния:
//   - Closed: нормальная работа, запросы проходят
//   - Open: провайдер недоступен, запросы отклоняются мгновенно
//   - Half-Open: пробный период, пропускаем часть запросов
//
// Использование:
//
//	cb := circuitbreaker.New("mercadopago")
//	client := &http.Client{Transport: circuitbreaker.RoundTripper(cb, nil)}
package circuitbreaker

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/onboarding-platform/pkg/logger"
)

// ErrOpen возвращается, когда breaker открыт и запрос не отправлялся.
var ErrOpen = errors.New("провайдер временно недоступен (circuit breaker open)")

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // Макс. запросов в Half-Open состоянии (по умолчанию 1)
	Interval     time.Duration // Интервал сброса счётчика в Closed (по умолчанию 60s)
	Timeout      time.Duration // Время в Open до перехода в Half-Open (по умолчанию 30s)
	FailureRatio float64       // Доля ошибок для перехода в Open (по умолчанию 0.5)
	MinRequests  uint32        // Мин. запросов для расчёта ratio (по умолчанию 5)
}

// DefaultSettings возвращает настройки по умолчанию.
// Платёжные провайдеры восстанавливаются медленно, поэтому Timeout заметный.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker — обёртка над gobreaker с логированием смены состояний.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[*http.Response]
	name string
}

// New создаёт новый Circuit Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		// Открываем, если доля ошибок >= FailureRatio и было >= MinRequests запросов.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — провайдер недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — провайдер восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// transport оборачивает http.RoundTripper в Circuit Breaker.
type transport struct {
	breaker *Breaker
	next    http.RoundTripper
}

// RoundTripper возвращает http.RoundTripper, защищённый Circuit Breaker.
// next == nil означает http.DefaultTransport.
func RoundTripper(b *Breaker, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &transport{breaker: b, next: next}
}

// RoundTrip выполняет запрос через Circuit Breaker.
// Сбоем считаются транспортные ошибки и 5xx ответы провайдера;
// бизнес-ответы 4xx (отклонённый платёж, неверные данные) breaker не открывают.
func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.breaker.cb.Execute(func() (*http.Response, error) {
		resp, err := t.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			// Возвращаем ответ вместе с "ошибкой" для счётчика breaker:
			// вызывающий код всё равно получит тело 5xx ответа.
			return resp, errServerFailure
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	if errors.Is(err, errServerFailure) {
		return resp, nil
	}

	return resp, err
}

// errServerFailure — внутренний маркер 5xx ответа для счётчика breaker.
var errServerFailure = errors.New("5xx ответ провайдера")

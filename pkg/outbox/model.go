package outbox

import "time"

// OutboxModel — GORM модель таблицы outbox.
type OutboxModel struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	AggregateType string     `gorm:"type:varchar(50);not null;index:idx_outbox_aggregate"`
	AggregateID   string     `gorm:"type:char(36);not null;index:idx_outbox_aggregate"`
	EventType     string     `gorm:"type:varchar(100);not null"`
	Topic         string     `gorm:"type:varchar(100);not null"`
	MessageKey    string     `gorm:"type:varchar(255);not null"`
	Payload       []byte     `gorm:"type:json;not null"`
	Headers       []byte     `gorm:"type:json"`
	CreatedAt     time.Time  `gorm:"not null;index:idx_outbox_unprocessed"`
	ProcessedAt   *time.Time `gorm:"index:idx_outbox_unprocessed"`
	RetryCount    int        `gorm:"not null;default:0"`
	LastError     *string    `gorm:"type:text"`
}

// TableName задаёт имя таблицы.
func (OutboxModel) TableName() string {
	return "outbox"
}

// toModel конвертирует доменную запись в GORM модель.
func toModel(o *Outbox) (*OutboxModel, error) {
	headers, err := o.HeadersJSON()
	if err != nil {
		return nil, err
	}
	return &OutboxModel{
		ID:            o.ID,
		AggregateType: o.AggregateType,
		AggregateID:   o.AggregateID,
		EventType:     o.EventType,
		Topic:         o.Topic,
		MessageKey:    o.MessageKey,
		Payload:       o.Payload,
		Headers:       headers,
		CreatedAt:     o.CreatedAt,
		ProcessedAt:   o.ProcessedAt,
		RetryCount:    o.RetryCount,
		LastError:     o.LastError,
	}, nil
}

// toDomain конвертирует GORM модель в доменную запись.
func toDomain(m *OutboxModel) (*Outbox, error) {
	o := &Outbox{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Topic:         m.Topic,
		MessageKey:    m.MessageKey,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
	}
	if err := o.SetHeadersFromJSON(m.Headers); err != nil {
		return nil, err
	}
	return o, nil
}

// Package events публикует доменные события заказов и платежей.
// Публикация выполняется по принципу fire-and-forget после фиксации данных;
// сбой между фиксацией и публикацией теряет событие, outbox не используется.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/commerce-system/internal/model"
)

// Publisher публикует доменное событие. Ошибки публикации не влияют
// на исход бизнес-операции.
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}

// envelope описывает формат публикуемого сообщения.
type envelope struct {
	Kind    string      `json:"kind"`
	Payload model.Event `json:"payload"`
}

// RedisPublisher публикует события в канал Redis Pub/Sub.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisPublisher создаёт издателя событий поверх Redis.
func NewRedisPublisher(addr, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		logger:  logger,
	}
}

// Publish сериализует событие и отправляет его в канал. Ошибки логируются.
func (p *RedisPublisher) Publish(ctx context.Context, event model.Event) {
	payload, err := json.Marshal(envelope{Kind: event.Kind(), Payload: event})
	if err != nil {
		p.logger.Error("marshal event", zap.String("kind", event.Kind()), zap.Error(err))
		return
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Error("publish event",
			zap.String("kind", event.Kind()),
			zap.String("channel", p.channel),
			zap.Error(err),
		)
	}
}

// Close закрывает соединение с Redis.
func (p *RedisPublisher) Close() error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close redis client: %w", err)
	}
	return nil
}

// LogPublisher пишет события в лог. Используется, когда Redis не настроен.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher создаёт издателя, пишущего события в лог.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish пишет событие в лог.
func (p *LogPublisher) Publish(ctx context.Context, event model.Event) {
	p.logger.Info("domain event",
		zap.String("kind", event.Kind()),
		zap.Any("payload", event),
		zap.Time("occurred_at", event.OccurredAt()),
	)
}

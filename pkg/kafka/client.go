// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"shop-catalog/internal/config"
	"shop-catalog/internal/model"
	"shop-catalog/pkg/database"
	"shop-catalog/pkg/log"
)

// maxAttempts 是单条事件的最大处理次数，超过后提交 offset 放弃重试。
const maxAttempts = 3

// EventProcessor 处理一条分类变更事件，消费者不关心具体的同步逻辑。
type EventProcessor interface {
	Process(ctx context.Context, event model.CategoryEvent) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// CloseProducer 刷新并关闭生产者。
func CloseProducer() {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		log.Errorf("关闭 Kafka 生产者失败: %v", err)
	}
}

// ProduceCategoryEvent 发送一条分类变更事件到 Kafka。
func ProduceCategoryEvent(ctx context.Context, event model.CategoryEvent) error {
	if producer == nil {
		return errors.New("kafka producer is not initialized")
	}
	msg, err := newEventMessage(event)
	if err != nil {
		return err
	}
	return producer.WriteMessages(ctx, msg)
}

// newEventMessage 以变更所在的根 code 为消息键，同一棵树的事件落在同一分区内保持顺序。
func newEventMessage(event model.CategoryEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := model.Path.Root(event.Code)
	if key == "" {
		key = model.Path.Root(event.PreviousCode)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}, nil
}

// Publisher 把 ProduceCategoryEvent 包装成服务层需要的发布接口。
// Broker 连续失败后断路器打开，后续发布立即失败，不再拖慢已提交的命令。
type Publisher struct {
	breaker *gobreaker.CircuitBreaker
}

// NewPublisher 创建带断路器的 Publisher。
func NewPublisher() *Publisher {
	return &Publisher{
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "kafka-publisher",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("断路器 '%s' 状态变化: %s -> %s", name, from, to)
			},
		}),
	}
}

// Publish 发送事件。
func (p *Publisher) Publish(ctx context.Context, event model.CategoryEvent) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, ProduceCategoryEvent(ctx, event)
	})
	return err
}

// retryBackoff 是同一条事件两次处理之间的基础等待时间，第 n 次失败后等待 n 倍。
var retryBackoff = 500 * time.Millisecond

// messageReader 是消费循环用到的 kafka.Reader 方法。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// StartConsumer 启动一个 Kafka 消费者处理分类事件，ctx 取消后退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor EventProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	consume(ctx, r, processor)

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}

// consume 逐条拉取并处理消息。一条消息处理完成(成功或放弃)后才提交 offset 并拉取下一条。
func consume(ctx context.Context, r messageReader, processor EventProcessor) {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			return
		}

		var event model.CategoryEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		log.Infof("开始处理分类事件: id=%s, type=%s, code=%s, offset=%d", event.ID, event.Type, event.Code, m.Offset)
		if !handle(ctx, processor, event) {
			// ctx 已取消，不提交，重启后从这条消息继续
			return
		}
		commit(ctx, r, m)
	}
}

// handle 原地重试同一条事件，直到成功或累计失败 maxAttempts 次。
// 返回 false 表示等待重试时 ctx 被取消。
func handle(ctx context.Context, processor EventProcessor, event model.CategoryEvent) bool {
	for local := 1; ; local++ {
		err := processor.Process(ctx, event)
		if err == nil {
			log.Infof("分类事件处理成功: id=%s", event.ID)
			clearAttempts(ctx, event.ID)
			return true
		}

		attempts := recordFailure(ctx, event.ID, local)
		if attempts >= maxAttempts {
			log.Errorf("分类事件多次失败(>=%d)，提交 offset 终止重试: id=%s, error: %v", maxAttempts, event.ID, err)
			clearAttempts(ctx, event.ID)
			return true
		}
		log.Warnw("处理分类事件失败，稍后重试",
			"eventID", event.ID,
			"attempt", attempts,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempts) * retryBackoff):
		}
	}
}

func attemptsKey(eventID string) string {
	return fmt.Sprintf("kafka:attempts:%s", eventID)
}

// recordFailure 在 Redis 中累计失败次数，进程重启后计数延续；Redis 不可用时退回本进程内的计数 local。
func recordFailure(ctx context.Context, eventID string, local int) int {
	if database.RDB == nil {
		return local
	}
	key := attemptsKey(eventID)
	attempts, err := database.RDB.Incr(ctx, key).Result()
	if err != nil {
		return local
	}
	_ = database.RDB.Expire(ctx, key, 24*time.Hour).Err()
	return int(attempts)
}

func clearAttempts(ctx context.Context, eventID string) {
	if database.RDB != nil {
		_ = database.RDB.Del(ctx, attemptsKey(eventID)).Err()
	}
}

func commit(ctx context.Context, r messageReader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

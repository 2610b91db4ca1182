/*
 * @module client/connectors/kafka_connector
 * @description Kafka运行事件发布器
 * @architecture 适配器模式 - 封装 kafka-go Writer
 * @stateFlow 事件 -> JSON -> 以运行ID为key写入topic
 * @rules 同一运行的事件落在同一分区
 * @dependencies github.com/segmentio/kafka-go
 * @refs publisher.go
 */

package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/models"
)

// 单条消息写入超时
const kafkaWriteTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher Kafka运行事件发布器
type KafkaPublisher struct {
	topic  string
	writer messageWriter
}

// NewKafkaPublisher 创建Kafka发布器
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		topic: cfg.Topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish 发送事件
func (p *KafkaPublisher) Publish(ctx context.Context, event models.RunEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
		Time:  event.FinishedAt,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(event.Status)},
			{Key: "trigger", Value: []byte(event.Trigger)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送Kafka消息失败 topic=%s: %w", p.topic, err)
	}
	return nil
}

// Close 关闭生产者
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

/*
 * @module client/connectors/publisher
 * @description 运行事件发布：按配置组合 Kafka 与 MQTT 发布器
 * @architecture 组合模式 - 多个发布器对外表现为一个
 * @stateFlow 运行结束 -> 逐个发布器发送 -> 汇总错误
 * @rules 某个发布器失败不影响其他发布器
 * @dependencies github.com/segmentio/kafka-go, github.com/eclipse/paho.mqtt.golang
 * @refs service/pipeline
 */

package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/models"
)

// Publisher 运行事件发布器
type Publisher interface {
	Publish(ctx context.Context, event models.RunEvent) error
	Close() error
}

// Publishers 依次调用所有发布器
type Publishers []Publisher

// Publish 发布事件，返回所有失败的合并错误
func (ps Publishers) Publish(ctx context.Context, event models.RunEvent) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close 关闭所有发布器
func (ps Publishers) Close() error {
	var errs []error
	for _, p := range ps {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewPublishers 按配置创建发布器，未配置 broker 的通道被跳过
func NewPublishers(kafkaCfg config.KafkaConfig, mqttCfg config.MQTTConfig) (Publishers, error) {
	var ps Publishers
	if len(kafkaCfg.Brokers) > 0 {
		ps = append(ps, NewKafkaPublisher(kafkaCfg))
		slog.Info("已启用Kafka运行事件", "brokers", kafkaCfg.Brokers, "topic", kafkaCfg.Topic)
	}
	if mqttCfg.Broker != "" {
		p, err := NewMQTTPublisher(mqttCfg)
		if err != nil {
			ps.Close()
			return nil, err
		}
		ps = append(ps, p)
		slog.Info("已启用MQTT运行事件", "broker", mqttCfg.Broker, "topic", mqttCfg.Topic)
	}
	return ps, nil
}

func encodeEvent(event models.RunEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化运行事件失败: %w", err)
	}
	return payload, nil
}

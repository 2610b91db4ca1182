/*
 * @module client/connectors/mqtt_connector
 * @description MQTT运行事件发布器
 * @architecture 适配器模式 - 封装 paho MQTT 客户端
 * @stateFlow 连接 broker -> 事件 -> JSON -> QoS1 发布
 * @rules 连接断开后由客户端自动重连
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs publisher.go
 */

package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/icedo724/medi/service/config"
	"github.com/icedo724/medi/service/models"
)

const (
	mqttQoS            byte = 1
	mqttConnectTimeout      = 10 * time.Second
	mqttPublishTimeout      = 10 * time.Second
	mqttDisconnectMs        = 250
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher MQTT运行事件发布器
type MQTTPublisher struct {
	topic  string
	client mqttClient
}

// NewMQTTPublisher 连接broker并创建发布器
func NewMQTTPublisher(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT连接断开", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("MQTT连接超时: %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT连接失败: %w", err)
	}
	return &MQTTPublisher{topic: cfg.Topic, client: client}, nil
}

// Publish 发布事件
func (p *MQTTPublisher) Publish(ctx context.Context, event models.RunEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, mqttQoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("MQTT发布超时 topic=%s", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT发布失败 topic=%s: %w", p.topic, err)
	}
	return nil
}

// Close 断开连接
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(mqttDisconnectMs)
	return nil
}

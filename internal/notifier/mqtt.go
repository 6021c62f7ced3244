package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultTopicPrefix MQTT topic 前缀，完整 topic 为 <prefix>/<household_id>
const DefaultTopicPrefix = "covid-household/exposures"

// MQTTClient common/mqtt.Client 满足此接口
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

type MQTTPublisher struct {
	client MQTTClient
	prefix string
	qos    byte
}

func NewMQTTPublisher(client MQTTClient, prefix string, qos byte) *MQTTPublisher {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos}
}

// Topic 家庭对应的 topic
func (p *MQTTPublisher) Topic(householdID string) string {
	return p.prefix + "/" + householdID
}

// Publish paho 的 token 等待不支持 ctx，这里只在发布前检查 ctx
func (p *MQTTPublisher) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	return p.client.Publish(p.Topic(change.HouseholdID), p.qos, false, payload)
}

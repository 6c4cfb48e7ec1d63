package mqttconn

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the publish surface handed to components that report state.
type IPublisher interface {
	PublishMessage(payload string) error
	Close()
}

// Publisher publishes to a single topic over a shared MQTT client.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishMessage publishes the payload at QoS 0. Best effort: a dropped
// message is not an error the caller can act on anyway.
func (p *Publisher) PublishMessage(payload string) error {
	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	return nil
}

func (p *Publisher) Close() {
	Close(p.client)
}

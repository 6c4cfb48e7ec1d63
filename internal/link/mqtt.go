package link

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTTransport adapts a paho client to the Transport interface. Connected
// means the broker session is open; telemetry HTTP rides the same uplink, so
// broker reachability doubles as the link-health probe.
type MQTTTransport struct {
	client mqtt.Client
}

func NewMQTTTransport(client mqtt.Client) *MQTTTransport {
	return &MQTTTransport{client: client}
}

func (t *MQTTTransport) Connect() error {
	token := t.client.Connect()
	token.Wait()
	return token.Error()
}

func (t *MQTTTransport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

func (t *MQTTTransport) Disconnect() {
	t.client.Disconnect(250)
}

package mqttconn

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string
}

// NewClient builds a configured but unconnected MQTT client. Automatic
// reconnection is disabled on purpose: the link manager owns the retry
// schedule, one bounded cycle at a time.
func NewClient(cfg *Config) mqtt.Client {
	connAddr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(connAddr)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(10 * time.Second)

	return mqtt.NewClient(opts)
}

// Close disconnects the client if it is still connected.
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}

package status

import (
	"encoding/json"
	"log"

	"github.com/mcalderan/irrinode/internal/model"
	"github.com/mcalderan/irrinode/pkg/mqttconn"
)

// Publisher feeds display sinks over MQTT with the current controller
// snapshot. Unchanged snapshots are not re-sent except when the link comes
// back, when the node re-advertises itself.
type Publisher struct {
	pub  mqttconn.IPublisher
	last string
}

func NewPublisher(pub mqttconn.IPublisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish sends the snapshot if it differs from the last one sent.
func (p *Publisher) Publish(snap model.ControllerSnapshot) {
	if p == nil || p.pub == nil {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	payload := string(b)
	if payload == p.last {
		return
	}
	if err := p.pub.PublishMessage(payload); err != nil {
		log.Printf("status: publish failed: %v", err)
		return
	}
	p.last = payload
}

// Readvertise forces a publish after a reconnect, so sinks that missed the
// retained state while the link was down catch up immediately.
func (p *Publisher) Readvertise(snap model.ControllerSnapshot) {
	if p == nil {
		return
	}
	p.last = ""
	p.Publish(snap)
}

package uplink

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"
)

// Envelope is what a gateway pushes to the internet for every payload that
// reaches it over the mesh.
type Envelope struct {
	GatewayID uint32 `msgpack:"gateway_id"`
	OriginID  uint32 `msgpack:"origin_id"`
	Sequence  uint32 `msgpack:"sequence"`
	TTL       uint8  `msgpack:"ttl"` // remaining ttl at delivery
	Payload   []byte `msgpack:"payload"`
}

// MQTTUplink publishes delivered payloads to an MQTT broker. It stands in
// for "the internet" that gateway nodes are connected to.
type MQTTUplink struct {
	client mqtt.Client
	topic  string
}

// New connects to the broker and returns a ready uplink.
func New(broker, clientID, topic string) (*MQTTUplink, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting uplink broker %s: %w", broker, token.Error())
	}
	return &MQTTUplink{client: client, topic: topic}, nil
}

// Publish encodes the delivery as msgpack and pushes it to the uplink topic.
func (u *MQTTUplink) Publish(nodeID, originID, sequence uint32, ttl uint8, payload []byte) error {
	env := Envelope{
		GatewayID: nodeID,
		OriginID:  originID,
		Sequence:  sequence,
		TTL:       ttl,
		Payload:   payload,
	}
	b, err := msgpack.Marshal(&env)
	if err != nil {
		return fmt.Errorf("encoding uplink envelope: %w", err)
	}
	token := u.client.Publish(u.topic, 1, false, b)
	token.Wait()
	return token.Error()
}

// Disconnect performs a clean disconnect from the MQTT broker.
func (u *MQTTUplink) Disconnect() {
	u.client.Disconnect(250)
}

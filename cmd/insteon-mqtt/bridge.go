package main

import (
	"encoding/json"
	"fmt"

	"github.com/krkeegan/insteon-mqtt"
	"github.com/krkeegan/insteon-mqtt/mqttlink"
)

// mqttBridge translates between the device registry's Signal-based
// state changes and MQTT topics. It is wiring-only: spec.md 6
// explicitly scopes exact topic and payload templating out of the
// core's responsibility, so the translation lives here in the binary
// rather than in the mqttlink or insteon packages.
type mqttBridge struct {
	registry *insteon.Registry
	link     *mqttlink.Link
	prefix   string
}

func newMQTTBridge(registry *insteon.Registry, link *mqttlink.Link, prefix string) *mqttBridge {
	return &mqttBridge{registry: registry, link: link, prefix: prefix}
}

type statePayload struct {
	IsOn   bool   `json:"is_on"`
	Level  byte   `json:"level"`
	Group  byte   `json:"group"`
	Mode   string `json:"mode"`
	Reason string `json:"reason"`
}

type commandPayload struct {
	Group byte   `json:"group"`
	Level byte   `json:"level"`
	Mode  string `json:"mode"`
}

// Start subscribes every registered device to its own command topic
// and connects each device's state signal to publish on its state
// topic. Devices added to the registry after Start must call
// attach themselves (see main.go's discovery callback).
func (b *mqttBridge) Start() {
	for _, dev := range b.registry.All() {
		b.attach(dev)
	}
}

// attach wires a single device into the bridge; called both from
// Start for devices known up front and from the discovery flow for
// devices connected afterward.
func (b *mqttBridge) attach(dev insteon.Device) {
	addr := dev.Address().String()
	stateTopic := fmt.Sprintf("%s/state/%s", b.prefix, addr)
	commandTopic := fmt.Sprintf("%s/command/%s/+", b.prefix, addr)

	dev.StateSignal().Connect(func(change insteon.StateChange) {
		payload, err := json.Marshal(statePayload{
			IsOn:   change.IsOn,
			Level:  change.Level,
			Group:  byte(change.Group),
			Mode:   change.Mode.String(),
			Reason: change.Reason.String(),
		})
		if err != nil {
			insteon.Log.Errorf("mqttbridge: marshal state for %s: %v", addr, err)
			return
		}
		if err := b.link.Publish(stateTopic, payload, true); err != nil {
			insteon.Log.Infof("mqttbridge: publish state for %s: %v", addr, err)
		}
	})

	if err := b.link.Subscribe(commandTopic, func(topic string, payload []byte) {
		b.handleCommand(dev, topic, payload)
	}); err != nil {
		insteon.Log.Infof("mqttbridge: subscribe %s: %v", commandTopic, err)
	}
}

func (b *mqttBridge) handleCommand(dev insteon.Device, topic string, payload []byte) {
	name := commandNameFromTopic(topic)
	if name == "" {
		return
	}

	var p commandPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			insteon.Log.Infof("mqttbridge: bad command payload on %s: %v", topic, err)
			return
		}
	}

	req := insteon.CommandRequest{
		Group:  insteon.Group(p.Group),
		Level:  p.Level,
		Mode:   parseMode(p.Mode),
		Reason: insteon.ReasonCommand,
	}

	type dispatcher interface {
		Dispatch(name string, req insteon.CommandRequest, done insteon.DoneFunc) error
	}
	d, ok := dev.(dispatcher)
	if !ok {
		insteon.Log.Infof("mqttbridge: device %s does not support command dispatch", dev.Address())
		return
	}
	err := d.Dispatch(name, req, func(success bool, status string, _ interface{}) {
		if !success {
			insteon.Log.Infof("mqttbridge: command %q on %s failed: %s", name, dev.Address(), status)
		}
	})
	if err != nil {
		insteon.Log.Infof("mqttbridge: %v", err)
	}
}

func commandNameFromTopic(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '/' {
			return topic[i+1:]
		}
	}
	return ""
}

func parseMode(s string) insteon.Mode {
	switch s {
	case "fast":
		return insteon.ModeFast
	case "ramp":
		return insteon.ModeRamp
	default:
		return insteon.ModeNormal
	}
}

// Package mqttlink adapts the gateway's device registry to an MQTT
// broker, grounded on nerrad567-gray-logic-stack's
// internal/infrastructure/mqtt.Client: the same connect/reconnect,
// subscription-tracking, and LWT shape, built on
// github.com/eclipse/paho.mqtt.golang, narrowed to the Connect/
// Publish/Subscribe/Unsubscribe/Close surface spec.md 6 asks of an
// external transport collaborator.
package mqttlink

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/krkeegan/insteon-mqtt/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000
	defaultKeepAlive         = 30 * time.Second
	maxQoS                   = 2
)

// MessageHandler is the callback signature for received messages.
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Link is the gateway's MQTT transport, matching spec.md 6's external
// collaborator contract (Connect, Publish, Subscribe, Unsubscribe,
// Close), plus optional OnConnect/OnDisconnect callbacks registered
// via SetOnConnect/SetOnDisconnect.
type Link struct {
	client  pahomqtt.Client
	cfg     config.MQTTConfig
	statusTopic string

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	connMu    sync.RWMutex
	connected bool

	callbackMu   sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
}

// Connect dials cfg's broker and blocks until the initial connection
// succeeds or defaultConnectTimeout elapses.
func Connect(cfg config.MQTTConfig) (*Link, error) {
	l := &Link{
		cfg:           cfg,
		statusTopic:   cfg.Topics.Prefix + "/system/status",
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, l.statusTopic, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { l.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { l.handleDisconnect(err) })

	l.client = pahomqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("mqttlink: connect timeout after %v", defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqttlink: connect: %w", err)
	}

	l.connMu.Lock()
	l.connected = true
	l.connMu.Unlock()
	return l, nil
}

func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	if cfg.Reconnect.InitialDelay > 0 {
		opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	}
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

func configureLWT(opts *pahomqtt.ClientOptions, statusTopic, clientID string) {
	payload := fmt.Sprintf(`{"status":"offline","client_id":%q,"reason":"unexpected_disconnect"}`, clientID)
	opts.SetWill(statusTopic, payload, 1, true)
}

func (l *Link) handleConnect() {
	l.connMu.Lock()
	l.connected = true
	l.connMu.Unlock()

	l.subMu.RLock()
	subs := make([]subscription, 0, len(l.subscriptions))
	for _, s := range l.subscriptions {
		subs = append(subs, s)
	}
	l.subMu.RUnlock()
	for _, s := range subs {
		l.client.Subscribe(s.topic, s.qos, l.wrapHandler(s.handler))
	}

	payload := fmt.Sprintf(`{"status":"online","client_id":%q}`, l.cfg.Broker.ClientID)
	l.client.Publish(l.statusTopic, byte(l.cfg.QoS), true, payload)

	l.callbackMu.RLock()
	cb := l.onConnect
	l.callbackMu.RUnlock()
	if cb != nil {
		cb()
	}
}

func (l *Link) handleDisconnect(err error) {
	l.connMu.Lock()
	l.connected = false
	l.connMu.Unlock()

	l.callbackMu.RLock()
	cb := l.onDisconnect
	l.callbackMu.RUnlock()
	if cb != nil {
		cb(err)
	}
}

// SetOnConnect registers a callback invoked on initial connect and
// every reconnect.
func (l *Link) SetOnConnect(fn func()) {
	l.callbackMu.Lock()
	l.onConnect = fn
	l.callbackMu.Unlock()
}

// SetOnDisconnect registers a callback invoked when the connection is
// lost.
func (l *Link) SetOnDisconnect(fn func(err error)) {
	l.callbackMu.Lock()
	l.onDisconnect = fn
	l.callbackMu.Unlock()
}

func (l *Link) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				// A panicking handler must not take down the paho
				// library's dispatch goroutine.
			}
		}()
		handler(msg.Topic(), msg.Payload())
	}
}

// Publish sends payload to topic.
func (l *Link) Publish(topic string, payload []byte, retained bool) error {
	if !l.IsConnected() {
		return fmt.Errorf("mqttlink: not connected")
	}
	token := l.client.Publish(topic, byte(l.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("mqttlink: publish timeout after %v", defaultPublishTimeout)
	}
	return token.Error()
}

// Subscribe registers handler for topic, restoring it automatically
// across reconnects.
func (l *Link) Subscribe(topic string, handler MessageHandler) error {
	l.subMu.Lock()
	l.subscriptions[topic] = subscription{topic: topic, qos: byte(l.cfg.QoS), handler: handler}
	l.subMu.Unlock()

	if !l.IsConnected() {
		return nil
	}
	token := l.client.Subscribe(topic, byte(l.cfg.QoS), l.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("mqttlink: subscribe timeout after %v", defaultPublishTimeout)
	}
	return token.Error()
}

// Unsubscribe removes a subscription.
func (l *Link) Unsubscribe(topic string) error {
	l.subMu.Lock()
	delete(l.subscriptions, topic)
	l.subMu.Unlock()

	if !l.IsConnected() {
		return nil
	}
	token := l.client.Unsubscribe(topic)
	token.WaitTimeout(defaultPublishTimeout)
	return token.Error()
}

// IsConnected reports the last known connection state.
func (l *Link) IsConnected() bool {
	l.connMu.RLock()
	defer l.connMu.RUnlock()
	return l.connected && l.client != nil && l.client.IsConnected()
}

// Close publishes a graceful offline status and disconnects.
func (l *Link) Close() error {
	if l.client == nil {
		return nil
	}
	if l.IsConnected() {
		payload := fmt.Sprintf(`{"status":"offline","client_id":%q,"reason":"graceful_shutdown"}`, l.cfg.Broker.ClientID)
		token := l.client.Publish(l.statusTopic, byte(l.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}
	l.client.Disconnect(defaultDisconnectQuiesce)
	l.connMu.Lock()
	l.connected = false
	l.connMu.Unlock()
	return nil
}

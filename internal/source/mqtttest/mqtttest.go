// Package mqtttest provides an in-memory paho client for tests.
package mqtttest

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed token, or one that never completes.
type Token struct {
	err     error
	done    chan struct{}
	pending bool
}

func NewToken(err error) *Token {
	done := make(chan struct{})
	close(done)
	return &Token{err: err, done: done}
}

// NewPendingToken returns a token that never completes, like a connect to
// a broker that does not answer.
func NewPendingToken() *Token {
	return &Token{done: make(chan struct{}), pending: true}
}

func (t *Token) Wait() bool {
	<-t.done
	return true
}

func (t *Token) WaitTimeout(d time.Duration) bool {
	if t.pending {
		time.Sleep(d)
		return false
	}
	return true
}

func (t *Token) Done() <-chan struct{} { return t.done }
func (t *Token) Error() error          { return t.err }

// Message is a received or published message.
type Message struct {
	TopicName string
	QoSLevel  byte
	Retain    bool
	Body      []byte
}

func (*Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte       { return m.QoSLevel }
func (m *Message) Retained() bool  { return m.Retain }
func (m *Message) Topic() string   { return m.TopicName }
func (*Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte { return m.Body }
func (*Message) Ack()              {}

// Client records publishes and routes Deliver calls to subscribers. Methods
// it does not override panic through the nil embedded interface.
type Client struct {
	mqtt.Client

	PublishErr   error
	SubscribeErr error
	// ConnectToken is returned by Connect; nil means an immediate success.
	ConnectToken mqtt.Token

	published   []Message
	disconnects int
	handlers    map[string]mqtt.MessageHandler
	mu          sync.Mutex
}

func NewClient() *Client {
	return &Client{handlers: make(map[string]mqtt.MessageHandler)}
}

func (*Client) IsConnected() bool      { return true }
func (*Client) IsConnectionOpen() bool { return true }
func (c *Client) Connect() mqtt.Token {
	if c.ConnectToken != nil {
		return c.ConnectToken
	}
	return NewToken(nil)
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

// Disconnects counts Disconnect calls.
func (c *Client) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PublishErr != nil {
		return NewToken(c.PublishErr)
	}

	var body []byte
	switch p := payload.(type) {
	case []byte:
		body = append([]byte(nil), p...)
	case string:
		body = []byte(p)
	}
	c.published = append(c.published, Message{TopicName: topic, QoSLevel: qos, Retain: retained, Body: body})

	return NewToken(nil)
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SubscribeErr != nil {
		return NewToken(c.SubscribeErr)
	}
	c.handlers[topic] = callback

	return NewToken(nil)
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range topics {
		delete(c.handlers, t)
	}

	return NewToken(nil)
}

// Subscribed reports whether a handler is registered for topic.
func (c *Client) Subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[topic]
	return ok
}

// Deliver hands payload to the handler subscribed on topic.
func (c *Client) Deliver(topic string, payload []byte) bool {
	c.mu.Lock()
	h, ok := c.handlers[topic]
	c.mu.Unlock()

	if !ok {
		return false
	}
	h(c, &Message{TopicName: topic, Body: payload})
	return true
}

// Published returns a copy of every successful publish.
func (c *Client) Published() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.published...)
}

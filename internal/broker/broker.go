// Package broker is the MQTT transport shared by the agent, the remote
// node and the backend. Delivery is best effort: there is no retry, no
// automatic reconnect and no acknowledgement beyond what QoS provides.
package broker

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnavailable covers failed connects and failed publishes.
	ErrUnavailable = errors.New("transport unavailable")
	// ErrConnectionLost is fatal for the remote node; nothing reconnects.
	ErrConnectionLost = errors.New("connection lost")
)

type Options struct {
	Broker         string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
}

type Message struct {
	Topic   string
	Payload []byte
}

type Handler func(Message)

type Client struct {
	cli    mqtt.Client
	broker string
	qos    byte
	lost   chan error
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		broker: opts.Broker,
		qos:    opts.QoS,
		lost:   make(chan error, 1),
	}

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectionLostHandler(c.onConnectionLost)
	if opts.ConnectTimeout > 0 {
		mqttOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	c.cli = mqtt.NewClient(mqttOpts)

	if token := c.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: could not connect to MQTT broker %s: %v", ErrUnavailable, opts.Broker, token.Error())
	}
	log.Info().Str("broker", opts.Broker).Str("client_id", opts.ClientID).Msg("connected to MQTT broker")
	return c, nil
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	log.Error().Err(err).Str("broker", c.broker).Msg("MQTT connection lost")
	select {
	case c.lost <- fmt.Errorf("%w: %v", ErrConnectionLost, err):
	default:
	}
}

func (c *Client) Publish(topic string, payload []byte) error {
	token := c.cli.Publish(topic, c.qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: publish to %s: %v", ErrUnavailable, topic, token.Error())
	}
	return nil
}

// Subscribe invokes handler on the client's own goroutine. Callers that
// need single-owner state should hand messages to a Mailbox.
func (c *Client) Subscribe(topic string, handler Handler) error {
	token := c.cli.Subscribe(topic, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(Message{Topic: m.Topic(), Payload: m.Payload()})
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: could not subscribe to topic %s: %v", ErrUnavailable, topic, token.Error())
	}
	log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

// Lost receives at most one error, when the broker connection drops.
func (c *Client) Lost() <-chan error {
	return c.lost
}

func (c *Client) Connected() bool {
	return c.cli.IsConnected()
}

func (c *Client) Close() {
	c.cli.Disconnect(250)
	log.Info().Str("broker", c.broker).Msg("MQTT client disconnected")
}

package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/autopeer-io/cartrack/pkg/log"
)

var errNotStarted = errors.New("mqtt client not started")

// pahoClient implements Client on top of autopaho's connection manager.
type pahoClient struct {
	cfg  ClientConfig
	subs *registry

	mu  sync.RWMutex
	cm  *autopaho.ConnectionManager
	ctx context.Context // handed to message handlers; set by Start

	up atomic.Bool
}

// NewClient validates cfg, fills in defaults and returns a client that is
// not yet connected.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}
	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}
	return &pahoClient{cfg: *cfg, subs: newRegistry(), ctx: context.Background()}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	pcfg, err := c.pahoConfig()
	if err != nil {
		return err
	}

	log.Info("Starting MQTT client", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)
	cm, err := autopaho.NewConnection(ctx, pcfg)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.BrokerURL, err)
	}

	c.mu.Lock()
	c.cm, c.ctx = cm, ctx
	c.mu.Unlock()
	return nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	cm, err := c.conn()
	if err != nil {
		return
	}
	_ = cm.Disconnect(ctx)
	c.up.Store(false)
	log.Info("MQTT client disconnected")
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	cm, err := c.conn()
	if err != nil {
		return err
	}
	_, err = cm.Publish(ctx, &paho.Publish{Topic: topic, QoS: byte(qos), Retain: retain, Payload: payload})
	return err
}

func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error {
	cm, err := c.conn()
	if err != nil {
		return err
	}

	// Registered before sending so a reconnect replays it even if this SUBSCRIBE is lost.
	c.subs.put(subscription{filter: topic, qos: qos, handler: handler})
	if _, err := cm.Subscribe(ctx, subscribePacket(topic, qos)); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Info("Subscribed to topic", "topic", topic)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, topic string) error {
	cm, err := c.conn()
	if err != nil {
		return err
	}
	c.subs.drop(topic)
	_, err = cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	cm, err := c.conn()
	if err != nil {
		return err
	}
	return cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool { return c.up.Load() }

func (c *pahoClient) conn() (*autopaho.ConnectionManager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cm == nil {
		return nil, errNotStarted
	}
	return c.cm, nil
}

func (c *pahoClient) handlerCtx() context.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ctx
}

func (c *pahoClient) pahoConfig() (autopaho.ClientConfig, error) {
	broker, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return autopaho.ClientConfig{}, err
	}

	pcfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify}, //nolint:gosec // opt-in via config
		OnConnectionUp:                c.connectionUp,
		OnConnectError: func(err error) {
			c.up.Store(false)
			log.Error(err, "MQTT connection failed, retrying")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				c.up.Store(false)
				log.Error(err, "MQTT client error")
			},
			OnServerDisconnect: c.serverDisconnect,
			OnPublishReceived:  []func(paho.PublishReceived) (bool, error){c.dispatch},
		},
	}
	if c.cfg.WillTopic != "" {
		pcfg.WillMessage = &paho.WillMessage{
			Topic:   c.cfg.WillTopic,
			Payload: c.cfg.WillPayload,
			QoS:     c.cfg.WillQoS,
			Retain:  c.cfg.WillRetain,
		}
	}
	return pcfg, nil
}

func (c *pahoClient) connectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.up.Store(true)
	log.Info("MQTT connection established")

	ctx := c.handlerCtx()
	for _, s := range c.subs.all() {
		if _, err := cm.Subscribe(ctx, subscribePacket(s.filter, s.qos)); err != nil {
			log.Error(err, "Failed to re-subscribe", "topic", s.filter)
		}
	}
}

func (c *pahoClient) serverDisconnect(d *paho.Disconnect) {
	c.up.Store(false)
	var reason string
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT server requested disconnect", "reasonCode", d.ReasonCode, "reason", reason)
}

// dispatch fans an incoming publish out to every matching handler, each on
// its own goroutine so the paho reader never blocks.
func (c *pahoClient) dispatch(p paho.PublishReceived) (bool, error) {
	handlers := c.subs.handlers(p.Packet.Topic)
	if len(handlers) == 0 {
		log.Debug("Received message on unhandled topic", "topic", p.Packet.Topic)
		return true, nil
	}
	ctx := c.handlerCtx()
	for _, h := range handlers {
		go h(ctx, p.Packet.Topic, p.Packet.Payload)
	}
	return true, nil
}

func subscribePacket(topic string, qos int) *paho.Subscribe {
	return &paho.Subscribe{Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: byte(qos)}}}
}

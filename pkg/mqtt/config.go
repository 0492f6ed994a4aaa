package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ClientConfig describes one broker connection. Zero durations and keep
// alive are replaced by defaults in NewClient.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	KeepAlive        uint16 // seconds
	SessionExpiry    uint32 // seconds
	ConnectTimeout   time.Duration
	ReconnectBackoff time.Duration

	CleanStart         bool
	InsecureSkipVerify bool

	// Last will, published by the broker if the agent drops off.
	WillTopic   string
	WillPayload []byte
	WillQoS     byte
	WillRetain  bool
}

const (
	defaultKeepAlive        = 60
	defaultConnectTimeout   = 5 * time.Second
	defaultReconnectBackoff = 3 * time.Second
)

func setDefaultConfig(cfg *ClientConfig) {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = defaultReconnectBackoff
	}
}

func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	switch {
	case err != nil:
		return fmt.Errorf("broker url: %w", err)
	case u.Host == "":
		return fmt.Errorf("broker url %q has no host", c.BrokerURL)
	case c.WillQoS > 2:
		return fmt.Errorf("will qos %d must be 0, 1 or 2", c.WillQoS)
	}
	return nil
}

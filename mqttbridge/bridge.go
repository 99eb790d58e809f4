// Package mqttbridge feeds pixel frames received over MQTT to a strip.
//
// Topics, below a configurable prefix:
//
//	<prefix>/channel/<n>  raw pixel bytes for channel n
//	<prefix>/draw         draw the written channels
//	<prefix>/show         [ch][len16 LE][bytes]... then draw
//	<prefix>/status       retained "online" / "offline", also the last will
package mqttbridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rkjdid/util"
	"github.com/rs/zerolog/log"
)

var (
	ErrConnectionFailed = errors.New("mqttbridge: connection failed")
	ErrUnknownTopic     = errors.New("mqttbridge: unknown topic")
	ErrBadPayload       = errors.New("mqttbridge: malformed payload")
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"

	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

type Config struct {
	Enabled        bool          `toml:"enabled" yaml:"enabled"`
	Broker         string        `toml:"broker" yaml:"broker"`
	ClientID       string        `toml:"client_id" yaml:"client_id"` // random when empty
	Username       string        `toml:"username" yaml:"username"`
	Password       string        `toml:"password" yaml:"password"`
	Prefix         string        `toml:"prefix" yaml:"prefix"`
	QoS            byte          `toml:"qos" yaml:"qos"`
	ConnectTimeout util.Duration `toml:"connect_timeout" yaml:"connect_timeout"`
}

var DefaultConfig = Config{
	Broker:         "tcp://localhost:1883",
	Prefix:         "pbx",
	ConnectTimeout: util.Duration(10 * time.Second),
}

// Target receives the frames. *strip.Strip implements it.
type Target interface {
	Write(n uint8, pixels []byte) error
	Draw() error
	Show(frames map[uint8][]byte) error
}

type Bridge struct {
	cfg    Config
	target Target
	client pahomqtt.Client
}

// New returns an unconnected Bridge.
func New(cfg Config, target Target) *Bridge {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig.Prefix
	}
	cfg.Prefix = strings.TrimSuffix(cfg.Prefix, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = "pbxd-" + uuid.NewString()
	}
	if cfg.QoS > 2 {
		cfg.QoS = 2
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig.ConnectTimeout
	}
	return &Bridge{cfg: cfg, target: target}
}

func (b *Bridge) ClientID() string { return b.cfg.ClientID }

// Topic joins parts below the prefix.
func (b *Bridge) Topic(parts ...string) string {
	return strings.Join(append([]string{b.cfg.Prefix}, parts...), "/")
}

func (b *Bridge) options() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(time.Duration(b.cfg.ConnectTimeout))
	opts.SetWill(b.Topic("status"), StatusOffline, 1, true)
	// subscriptions are not kept by a clean session, renew them on every
	// (re)connection
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		b.subscribe(c)
		c.Publish(b.Topic("status"), 1, true, StatusOnline)
		log.Info().Str("broker", b.cfg.Broker).Str("client_id", b.cfg.ClientID).Msg("mqtt: connected")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", b.cfg.Broker).Msg("mqtt: connection lost")
	})
	return opts
}

// Connect connects to the broker and subscribes to the frame topics. On
// failure the client is disconnected and Close becomes a no-op.
func (b *Bridge) Connect() error {
	client := pahomqtt.NewClient(b.options())
	timeout := time.Duration(b.cfg.ConnectTimeout)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(disconnectQuiesce)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(disconnectQuiesce)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	b.client = client
	return nil
}

func (b *Bridge) subscribe(c pahomqtt.Client) {
	filters := map[string]byte{
		b.Topic("channel", "+"): b.cfg.QoS,
		b.Topic("draw"):         b.cfg.QoS,
		b.Topic("show"):         b.cfg.QoS,
	}
	c.SubscribeMultiple(filters, func(_ pahomqtt.Client, m pahomqtt.Message) {
		if err := b.HandleMessage(m.Topic(), m.Payload()); err != nil {
			log.Debug().Err(err).Str("topic", m.Topic()).Msg("mqtt: message")
		}
	})
}

// Close publishes the offline status and disconnects.
func (b *Bridge) Close() {
	if b.client == nil {
		return
	}
	if b.client.IsConnected() {
		b.client.Publish(b.Topic("status"), 1, true, StatusOffline).WaitTimeout(publishTimeout)
	}
	b.client.Disconnect(disconnectQuiesce)
}

// HandleMessage applies the message received on topic to the target.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	rest, ok := strings.CutPrefix(topic, b.cfg.Prefix+"/")
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	switch {
	case rest == "draw":
		return b.target.Draw()
	case rest == "show":
		frames, err := ParseShow(payload)
		if err != nil {
			return err
		}
		return b.target.Show(frames)
	case strings.HasPrefix(rest, "channel/"):
		n, err := strconv.ParseUint(strings.TrimPrefix(rest, "channel/"), 10, 8)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
		}
		return b.target.Write(uint8(n), payload)
	}
	return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

// ParseShow splits a show payload into per-channel frames. Each block is
// the channel number, the frame length as a little-endian uint16, then
// the frame.
func ParseShow(p []byte) (map[uint8][]byte, error) {
	frames := make(map[uint8][]byte)
	for len(p) > 0 {
		if len(p) < 3 {
			return nil, fmt.Errorf("%w: truncated block header", ErrBadPayload)
		}
		ch, size := p[0], int(binary.LittleEndian.Uint16(p[1:3]))
		p = p[3:]
		if len(p) < size {
			return nil, fmt.Errorf("%w: channel %d wants %d bytes, %d left", ErrBadPayload, ch, size, len(p))
		}
		if _, dup := frames[ch]; dup {
			return nil, fmt.Errorf("%w: channel %d repeated", ErrBadPayload, ch)
		}
		frames[ch] = p[:size:size]
		p = p[size:]
	}
	return frames, nil
}

// AppendShow appends a show block for channel ch to dst.
func AppendShow(dst []byte, ch uint8, frame []byte) []byte {
	dst = append(dst, ch)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(frame)))
	return append(dst, frame...)
}

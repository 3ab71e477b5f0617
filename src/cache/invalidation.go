package cache

import (
	"fmt"
	"strings"
	"time"

	"power-observer/src/logger"
	"power-observer/src/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// InvalidationListener evicts cached days when the store announces new data.
// Topics have the form <base>/<node>/<YYYY-MM-DD>; the payload is ignored.
type InvalidationListener struct {
	Config       models.MInvalidationConfig
	Cache        *TimeWindowCache
	Logger       *logger.Logger
	OnInvalidate func(node string, day time.Time)

	client mqtt.Client
}

// -----------------------------------------------------------------------------

func NewInvalidationListener(cfg models.MInvalidationConfig, c *TimeWindowCache, log *logger.Logger) *InvalidationListener {
	return &InvalidationListener{Config: cfg, Cache: c, Logger: log}
}

// -----------------------------------------------------------------------------

// Start connects to the broker and subscribes. Subscriptions are restored
// on every reconnect.
func (l *InvalidationListener) Start() error {
	filter := strings.TrimSuffix(l.Config.Topic, "/") + "/+/+"

	opts := mqtt.NewClientOptions().
		AddBroker(l.Config.Broker).
		SetClientID(l.Config.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(filter, 1, func(_ mqtt.Client, msg mqtt.Message) {
			l.HandleTopic(msg.Topic())
		})
		token.Wait()
		if err := token.Error(); err != nil {
			l.Logger.Error("Subscribe to %s failed: %v", filter, err)
			return
		}
		l.Logger.Info("Subscribed to %s", filter)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		l.Logger.Warning("Broker connection lost: %v", err)
	})

	l.client = mqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		l.Logger.Warning("Broker %s not reachable yet, retrying in background", l.Config.Broker)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker %s: %w", l.Config.Broker, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// HandleTopic parses one notification topic and evicts the matching day.
func (l *InvalidationListener) HandleTopic(topic string) {
	node, day, err := ParseInvalidationTopic(l.Config.Topic, topic)
	if err != nil {
		l.Logger.Warning("Ignoring invalidation topic %q: %v", topic, err)
		return
	}

	existed := l.Cache.ClearDay(node, day.Year(), int(day.Month()), day.Day())
	l.Logger.Debug("Invalidated %s %s (cached=%v)", node, day.Format("2006-01-02"), existed)

	if l.OnInvalidate != nil {
		l.OnInvalidate(node, day)
	}
}

// -----------------------------------------------------------------------------

// Stop disconnects from the broker.
func (l *InvalidationListener) Stop() {
	if l.client != nil && l.client.IsConnected() {
		l.client.Disconnect(250)
	}
}

// -----------------------------------------------------------------------------

// ParseInvalidationTopic splits "<base>/<node>/<YYYY-MM-DD>".
func ParseInvalidationTopic(base, topic string) (string, time.Time, error) {
	prefix := strings.TrimSuffix(base, "/") + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", time.Time{}, fmt.Errorf("topic outside %s", prefix)
	}
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", time.Time{}, fmt.Errorf("expected <node>/<date>")
	}
	if strings.Contains(parts[0], KeySeparator) {
		return "", time.Time{}, fmt.Errorf("node id contains %q", KeySeparator)
	}
	day, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("bad date %q", parts[1])
	}
	return parts[0], day, nil
}

package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"mood-mirror-go/config"
	"mood-mirror-go/internal/events"
)

// Client veröffentlicht Detektions-Events auf einem MQTT-Topic,
// etwa für Hausautomatisierungen, die auf Emotionen reagieren wollen.
type Client struct {
	config config.MQTTConfig
	client mqtt.Client
}

// NewClient erstellt einen neuen MQTT-Client.
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{config: cfg}
}

// Start verbindet den Client mit dem Broker.
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Infof("MQTT connected to %s", brokerURL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warnf("MQTT connection lost: %v", err)
	})

	// Automatische Wiederverbindung
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Stop trennt die Verbindung zum Broker.
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		c.client.Disconnect(250)
	}
}

// Publish sendet ein Detektions-Event als JSON auf das konfigurierte Topic.
// Fehler werden geloggt, damit die Frame-Schleife nicht ins Stocken gerät.
func (c *Client) Publish(ev events.DetectionEvent) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("Konnte Detektions-Event nicht serialisieren: %v", err)
		return
	}

	token := c.client.Publish(c.config.Topic, 0, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Warnf("MQTT publish failed: %v", token.Error())
		}
	}()
}

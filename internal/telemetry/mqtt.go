// Package telemetry handles MQTT telemetry publishing for relay sessions.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/diewolke9/flo/internal/config"
	"github.com/diewolke9/flo/internal/events"
	"github.com/diewolke9/flo/internal/util"
)

// MQTT topic suffixes, appended to the configured prefix.
const (
	TopicSessions = "sessions"
	TopicStatus   = "status"
	TopicPolicy   = "policy"
	TopicAdmin    = "admin"
)

// MQTTHandler manages the MQTT connection and publishes session telemetry.
type MQTTHandler struct {
	cfg      *config.Config
	eventBus *events.EventBus
	client   mqtt.Client
	prefix   string

	// Metadata included in every message
	metadata map[string]interface{}
}

// NewMQTTHandler creates a new MQTT telemetry handler.
func NewMQTTHandler(cfg *config.Config, eventBus *events.EventBus) (*MQTTHandler, error) {
	mqttCfg := cfg.MQTT

	if !mqttCfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()
	metadata := map[string]interface{}{
		"hostname":  sysInfo.Hostname,
		"platform":  sysInfo.Platform,
		"cpu_model": sysInfo.CPUModel,
		"cpu_cores": sysInfo.CPUCores,
		"memory_mb": sysInfo.TotalMemory,
	}

	handler := &MQTTHandler{
		cfg:      cfg,
		eventBus: eventBus,
		metadata: metadata,
		prefix:   mqttCfg.TopicPrefix,
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if mqttCfg.UseTLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, mqttCfg.BrokerURL, mqttCfg.Port))

	if mqttCfg.ClientID != "" {
		opts.SetClientID(mqttCfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("flo-relay-%s", sysInfo.Hostname))
	}
	if mqttCfg.Username != "" {
		opts.SetUsername(mqttCfg.Username)
		opts.SetPassword(mqttCfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(false)

	if mqttCfg.UseTLS {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if mqttCfg.CertFile != "" && mqttCfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(mqttCfg.CertFile, mqttCfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	})

	handler.client = mqtt.NewClient(opts)
	return handler, nil
}

// Start connects to the MQTT broker and subscribes to session events.
// Blocks until the context is cancelled.
func (h *MQTTHandler) Start(ctx context.Context) error {
	log.Info().
		Str("broker", h.cfg.MQTT.BrokerURL).
		Int("port", h.cfg.MQTT.Port).
		Msg("connecting to MQTT broker")

	token := h.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	h.subscribeEvents()

	<-ctx.Done()

	h.publishShutdown()
	h.client.Disconnect(5000)
	log.Info().Msg("MQTT disconnected")

	return nil
}

// subscribeEvents registers event handlers for MQTT publishing.
func (h *MQTTHandler) subscribeEvents() {
	h.eventBus.Subscribe(events.EventSessionStarted, "mqtt.sessionStarted", h.onSessionStarted)
	h.eventBus.Subscribe(events.EventSessionEnded, "mqtt.sessionEnded", h.onSessionEnded)
	h.eventBus.Subscribe(events.EventStatusChanged, "mqtt.statusChanged", h.onStatusChanged)
	h.eventBus.Subscribe(events.EventPlayerMuted, "mqtt.playerMuted", h.onMuteChanged("muted"))
	h.eventBus.Subscribe(events.EventPlayerUnmuted, "mqtt.playerUnmuted", h.onMuteChanged("unmuted"))
}

// publish sends a JSON message to an MQTT topic.
func (h *MQTTHandler) publish(topic string, payload interface{}) {
	if !h.client.IsConnected() {
		return
	}

	msg := h.buildMessage(payload)

	data, err := json.Marshal(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := h.client.Publish(h.prefix+"/"+topic, 1, false, data) // QoS 1
	go func() {
		token.Wait()
		if token.Error() != nil {
			log.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

// buildMessage combines host metadata with the event payload.
func (h *MQTTHandler) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{})
	for k, v := range h.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

func (h *MQTTHandler) onSessionStarted(ctx context.Context, event events.Event) error {
	h.publish(TopicSessions, map[string]interface{}{
		"event":   "session_started",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onSessionEnded(ctx context.Context, event events.Event) error {
	h.publish(TopicSessions, map[string]interface{}{
		"event":   "session_ended",
		"payload": event.Payload,
	})
	return nil
}

func (h *MQTTHandler) onStatusChanged(ctx context.Context, event events.Event) error {
	h.publish(TopicStatus, event.Payload)
	return nil
}

func (h *MQTTHandler) onMuteChanged(action string) events.HandlerFunc {
	return func(ctx context.Context, event events.Event) error {
		h.publish(TopicPolicy, map[string]interface{}{
			"event":   action,
			"payload": event.Payload,
		})
		return nil
	}
}

// publishShutdown sends a shutdown message to the MQTT broker.
func (h *MQTTHandler) publishShutdown() {
	h.publish(TopicAdmin, map[string]interface{}{
		"event":     "shutdown",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Package mqtt publishes daily sun summaries for home-automation consumers
// (irrigation controllers, shade awnings). Entirely optional; a disabled
// publisher is a no-op.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sunfield/sunfield/internal/shade"
	"github.com/sunfield/sunfield/internal/solar"
	"github.com/sunfield/sunfield/internal/zone"
)

type Publisher struct {
	client      paho.Client
	topicPrefix string
	enabled     bool
	logger      *slog.Logger
}

type Config struct {
	Enabled     bool
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// NewPublisher connects to the broker when enabled; otherwise returns a
// disabled no-op publisher.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c paho.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			logger.Info("mqtt connected", "broker", cfg.Broker)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
		logger:      logger,
	}, nil
}

// sunTimesPayload is the wire form of a daily sun-times summary.
type sunTimesPayload struct {
	Date           string  `json:"date"`
	Sunrise        string  `json:"sunrise,omitempty"`
	Sunset         string  `json:"sunset,omitempty"`
	SolarNoon      string  `json:"solar_noon"`
	DayLengthHours float64 `json:"day_length_hours"`
	PolarDay       bool    `json:"polar_day,omitempty"`
	PolarNight     bool    `json:"polar_night,omitempty"`
}

// PublishSunTimes publishes the day's solar events under
// <prefix>/suntimes.
func (p *Publisher) PublishSunTimes(date time.Time, st solar.SunTimes) error {
	if !p.enabled {
		return nil
	}

	payload := sunTimesPayload{
		Date:           date.UTC().Format(time.DateOnly),
		SolarNoon:      st.SolarNoon.Format(time.RFC3339),
		DayLengthHours: st.DayLengthHours,
		PolarDay:       st.PolarDay(),
		PolarNight:     st.PolarNight(),
	}
	if st.Sunrise != nil {
		payload.Sunrise = st.Sunrise.Format(time.RFC3339)
	}
	if st.Sunset != nil {
		payload.Sunset = st.Sunset.Format(time.RFC3339)
	}

	return p.publishJSON(fmt.Sprintf("%s/suntimes", p.topicPrefix), payload)
}

// zoneSummaryPayload is the wire form of a per-zone daily summary.
type zoneSummaryPayload struct {
	ZoneID            string  `json:"zone_id"`
	Name              string  `json:"name"`
	Date              string  `json:"date"`
	EffectiveSunHours float64 `json:"effective_sun_hours"`
	PercentBlocked    float64 `json:"percent_blocked"`
	Category          string  `json:"category"`
}

// PublishZoneSummary publishes one zone's analysis under
// <prefix>/zones/<id>/summary.
func (p *Publisher) PublishZoneSummary(z zone.Zone, date time.Time, a shade.Analysis) error {
	if !p.enabled {
		return nil
	}

	payload := zoneSummaryPayload{
		ZoneID:            z.ID,
		Name:              z.Name,
		Date:              date.UTC().Format(time.DateOnly),
		EffectiveSunHours: a.EffectiveSunHours,
		PercentBlocked:    a.PercentBlocked,
		Category:          string(zone.Classify(a.EffectiveSunHours)),
	}

	return p.publishJSON(fmt.Sprintf("%s/zones/%s/summary", p.topicPrefix, z.ID), payload)
}

func (p *Publisher) publishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	if token := p.client.Publish(topic, 0, true, data); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	p.logger.Debug("mqtt published", "topic", topic, "bytes", len(data))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.enabled {
		p.client.Disconnect(250)
	}
}

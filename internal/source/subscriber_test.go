package source

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"codeberg.org/mutker/irrigatectl/internal/source/mqtttest"
	"codeberg.org/mutker/irrigatectl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
	"timestamp": "2024-06-01T12:00:00Z",
	"readings": {
		"soil_moisture": 51.2,
		"temperature": 24.5,
		"humidity": 66,
		"tank_level": 82.5,
		"flow_rate": 4.1
	}
}`

func TestDecode(t *testing.T) {
	received := time.Date(2024, 6, 1, 12, 0, 3, 0, time.UTC)

	readings, err := Decode([]byte(validPayload), received)
	require.NoError(t, err)
	require.Len(t, readings, telemetry.MetricCount)

	set, err := telemetry.NewSet(readings)
	require.NoError(t, err)
	assert.Equal(t, 51.2, set[telemetry.SoilMoisture].Value)
	assert.Equal(t, 4.1, set[telemetry.FlowRate].Value)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), set[telemetry.Humidity].Timestamp)
}

func TestDecodeMissingTimestampUsesReceiveTime(t *testing.T) {
	received := time.Date(2024, 6, 1, 12, 0, 3, 0, time.UTC)
	payload := `{"readings":{"soil_moisture":1,"temperature":2,"humidity":3,"tank_level":4,"flow_rate":5}}`

	readings, err := Decode([]byte(payload), received)
	require.NoError(t, err)
	for _, r := range readings {
		assert.Equal(t, received, r.Timestamp)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		msg     string
	}{
		{"not json", `soil=40`, "decode"},
		{"missing metric", `{"readings":{"soil_moisture":1,"temperature":2,"humidity":3,"tank_level":4}}`, "missing metric flow_rate"},
		{"unknown metric", `{"readings":{"soil_moisture":1,"temperature":2,"humidity":3,"tank_level":4,"flow_rate":5,"wind":9}}`, "unknown metrics [wind]"},
		{"no readings", `{"timestamp":"2024-06-01T12:00:00Z"}`, "missing metric soil_moisture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload), time.Now())
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrDecodePayload))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestSubscriberLatest(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MaxAge = 10 * time.Second

	sub := NewSubscriber(mqtttest.NewClient(), cfg, nil)
	sub.now = func() time.Time { return now }

	_, err := sub.Latest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSourceUnavailable))

	require.NoError(t, sub.Ingest([]byte(validPayload)))
	readings, err := sub.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, readings, telemetry.MetricCount)

	readings[0].Value = -1
	again, err := sub.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 51.2, again[0].Value)

	now = now.Add(11 * time.Second)
	_, err = sub.Latest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "11s old")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sub.Latest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscriberKeepsLastGoodSet(t *testing.T) {
	sub := NewSubscriber(mqtttest.NewClient(), DefaultConfig(), nil)

	require.NoError(t, sub.Ingest([]byte(validPayload)))
	require.Error(t, sub.Ingest([]byte(`{"readings":{}}`)))

	readings, err := sub.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24.5, readings[telemetry.Temperature].Value)
}

func TestSubscriberRun(t *testing.T) {
	client := mqtttest.NewClient()
	cfg := DefaultConfig()
	sub := NewSubscriber(client, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool { return client.Subscribed(cfg.TelemetryTopic) }, time.Second, time.Millisecond)
	require.True(t, client.Deliver(cfg.TelemetryTopic, []byte(validPayload)))

	readings, err := sub.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, readings, telemetry.MetricCount)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, client.Subscribed(cfg.TelemetryTopic))
}

func TestSubscriberRunSubscribeFailure(t *testing.T) {
	client := mqtttest.NewClient()
	client.SubscribeErr = stderrors.New("not authorized")

	err := NewSubscriber(client, DefaultConfig(), nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSubscribe))
	assert.Contains(t, err.Error(), "not authorized")
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.QoS = 3
	assert.True(t, errors.HasCode(cfg.Validate(), errors.ErrConfiguration))

	cfg = DefaultConfig()
	cfg.Broker = ""
	assert.True(t, errors.HasCode(cfg.Validate(), errors.ErrConfiguration))
}

func TestClientOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Username = "grower"

	opts := ClientOptions(cfg, nil)
	assert.Equal(t, "irrigatectl", opts.ClientID)
	assert.Equal(t, "grower", opts.Username)
	assert.False(t, opts.CleanSession)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
}

package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"airwatch/internal/aqi"
)

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage("alert-1", "n1", aqi.TierBad, Measurement{PM25: 90, PM10: 120.4, AQI: 157}, t0)

	assert.Equal(t, "🚨 Air quality alert - Bad", msg.Title)
	assert.Equal(t, "Node n1: PM2.5=90 μg/m³, PM10=120", msg.Body)
	assert.Equal(t, map[string]string{
		"alert_id":     "alert-1",
		"node_id":      "n1",
		"level":        "bad",
		"aqi":          "157",
		"pm2_5":        "90",
		"pm10":         "120.4",
		"timestamp":    "2026-03-01T08:00:00Z",
		"click_action": ClickAction,
	}, msg.Data)
	assert.Equal(t, "high", msg.Android.Priority)
	assert.Equal(t, AndroidChannelID, msg.Android.ChannelID)
	assert.Equal(t, "#FF5722", msg.Android.Color)
}

func TestBuildMessage_OmitsZeroPM10(t *testing.T) {
	msg := BuildMessage("alert-1", "n1", aqi.TierPoor, Measurement{PM25: 55.6}, t0)

	assert.Equal(t, "Node n1: PM2.5=56 μg/m³", msg.Body)
	assert.Equal(t, "😷 Air quality alert - Poor", msg.Title)
}

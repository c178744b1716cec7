package alerting

import (
	"fmt"
	"strconv"
	"time"

	"airwatch/internal/aqi"
	"airwatch/internal/types"
)

// Android delivery hints for alert notifications.
const (
	AndroidChannelID = "air_quality_alerts"
	AndroidIcon      = "ic_notification"
	AndroidColor     = "#FF5722"
	AndroidSound     = "default"
	ClickAction      = "FLUTTER_NOTIFICATION_CLICK"
)

// Measurement is the evaluated reading an alert is about.
type Measurement struct {
	PM1  float64
	PM25 float64
	PM10 float64
	AQI  int
}

// BuildMessage renders the push notification for an alert.
func BuildMessage(alertID, nodeID string, tier aqi.Tier, m Measurement, now time.Time) types.PushMessage {
	info := aqi.Info(tier)

	body := fmt.Sprintf("Node %s: PM2.5=%.0f μg/m³", nodeID, m.PM25)
	if m.PM10 > 0 {
		body += fmt.Sprintf(", PM10=%.0f", m.PM10)
	}

	return types.PushMessage{
		Title: fmt.Sprintf("%s Air quality alert - %s", info.Emoji, info.Label),
		Body:  body,
		Data: map[string]string{
			"alert_id":     alertID,
			"node_id":      nodeID,
			"level":        string(tier),
			"aqi":          strconv.Itoa(m.AQI),
			"pm2_5":        strconv.FormatFloat(m.PM25, 'f', -1, 64),
			"pm10":         strconv.FormatFloat(m.PM10, 'f', -1, 64),
			"timestamp":    now.Format(time.RFC3339),
			"click_action": ClickAction,
		},
		Android: types.AndroidOptions{
			Priority:  "high",
			ChannelID: AndroidChannelID,
			Icon:      AndroidIcon,
			Color:     AndroidColor,
			Sound:     AndroidSound,
		},
	}
}

package types

import "time"

// PushMessage is a transport-neutral push notification. Data values are
// strings because FCM data payloads only carry string values.
type PushMessage struct {
	Title   string
	Body    string
	Data    map[string]string
	Android AndroidOptions
}

// AndroidOptions carries the Android-specific delivery hints.
type AndroidOptions struct {
	Priority  string
	ChannelID string
	Icon      string
	Color     string
	Sound     string
}

// PushToken is a registered device token.
type PushToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

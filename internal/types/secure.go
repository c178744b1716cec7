package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential (database DSN, FCM service account JSON,
// Redis password) and never prints it. String and MarshalJSON return a
// placeholder so the value cannot leak through fmt, slog, or JSON dumps of
// the configuration.
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// LogValue keeps slog from falling back to the raw string kind.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Unmask returns the plaintext. Call it only at the point where the secret is
// handed to a driver or client.
func (s SecretString) Unmask() string {
	return string(s)
}

package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors. ErrConfiguration is the startup-fatal class:
	// the dashboard refuses to start while any of these is present.
	ErrConfiguration   ErrorCode = "configuration_error"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Telemetry errors
	ErrSourceUnavailable ErrorCode = "source_unavailable"
	ErrDecodePayload     ErrorCode = "decode_payload_failed"

	// Broker errors
	ErrBrokerConnect ErrorCode = "broker_connect_failed"
	ErrPublish       ErrorCode = "publish_failed"
	ErrSubscribe     ErrorCode = "subscribe_failed"

	// State errors
	ErrInvalidState ErrorCode = "invalid_state"

	// Lifecycle errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Operation errors
	ErrTimeout ErrorCode = "operation_timeout"
)

var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrConfiguration:     "Invalid configuration",
	ErrReadConfig:        "Failed to read config file",
	ErrBindFlags:         "Failed to bind flags",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrSourceUnavailable: "Telemetry source unavailable",
	ErrDecodePayload:     "Failed to decode telemetry payload",
	ErrBrokerConnect:     "Failed to connect to MQTT broker",
	ErrPublish:           "Failed to publish message",
	ErrSubscribe:         "Failed to subscribe to topic",
	ErrInvalidState:      "Invalid state",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrTimeout:           "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

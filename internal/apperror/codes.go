package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Monitor-specific error codes
const (
	// Quote sources
	CodeSourceUnavailable  Code = "SOURCE_UNAVAILABLE"
	CodeContractCallFailed Code = "CONTRACT_CALL_FAILED"
	CodeAggregationFailed  Code = "AGGREGATION_FAILED"

	// Stream (websocket) errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Alert deduplication
	CodeAlertStoreError Code = "ALERT_STORE_ERROR"

	// Notification delivery
	CodeNotificationTransient Code = "NOTIFICATION_TRANSIENT"
	CodeNotificationPermanent Code = "NOTIFICATION_PERMANENT"

	// Scan loop
	CodeSchedulerFatal Code = "SCHEDULER_FATAL"

	// Circuit breaker errors
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

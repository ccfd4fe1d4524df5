package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput: "Invalid input provided",
	CodeNotFound:     "Resource not found",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeSourceUnavailable:  "Quote source unavailable",
	CodeContractCallFailed: "Smart contract call failed",
	CodeAggregationFailed:  "Price aggregation failed",

	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	CodeAlertStoreError: "Alert store operation failed",

	CodeNotificationTransient: "Notification delivery failed, retryable",
	CodeNotificationPermanent: "Notification delivery rejected",

	CodeSchedulerFatal: "Unexpected failure while scanning instrument",

	CodeCircuitOpen: "Circuit breaker is open",
}

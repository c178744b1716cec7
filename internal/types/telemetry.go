package types

// Telemetry metric names. Recorders for both backends use these constants.
const (
	MetricCycleDuration    = "EvaluationCycleDuration"
	MetricNodesEvaluated   = "NodesEvaluated"
	MetricNodesFailed      = "NodesFailed"
	MetricTierEvaluation   = "TierEvaluation"
	MetricAnomalyDetected  = "AnomalyDetected"
	MetricAlertDispatched  = "AlertDispatched"
	MetricAlertSuppressed  = "AlertSuppressed"
	MetricDeliveryAttempt  = "DeliveryAttempt"
	MetricDeliverySuccess  = "DeliverySuccess"
	MetricDeliveryFailed   = "DeliveryFailed"
	MetricTokenPruned      = "TokenPruned"
	MetricReadingsIngested = "ReadingsIngested"
	MetricReadingsRejected = "ReadingsRejected"
	MetricAPILatency       = "APILatency"

	DimTier     = "Tier"
	DimOutcome  = "Outcome"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"
	DimService  = "Service"
)

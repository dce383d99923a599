package metrics

import (
	"time"
)

// Collector records service-level events. Implementations export them to a
// backend; NoOpCollector discards them.
type Collector interface {
	RecordUpload(outcome, errorType string, rows int, duration time.Duration)
	RecordSuggestion(operation, source string)
	RecordAIRequest(provider, operation string, success bool, duration time.Duration)
	RecordCircuitState(name string, state CircuitState)
	RecordEmbeddingCache(hit bool)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type NoOpCollector struct{}

func (NoOpCollector) RecordUpload(outcome, errorType string, rows int, duration time.Duration) {}
func (NoOpCollector) RecordSuggestion(operation, source string)                                {}
func (NoOpCollector) RecordAIRequest(provider, operation string, success bool, duration time.Duration) {
}
func (NoOpCollector) RecordCircuitState(name string, state CircuitState) {}
func (NoOpCollector) RecordEmbeddingCache(hit bool)                      {}

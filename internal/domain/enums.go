package domain

// EventStatus is the outcome recorded on a finalized trace
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusError   EventStatus = "error"
)

// IsValid checks if the status is valid
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusSuccess, EventStatusError:
		return true
	}
	return false
}

// PersistOutcome is the terminal state of a persistence attempt
type PersistOutcome string

const (
	PersistOutcomePersisted PersistOutcome = "PERSISTED"
	PersistOutcomeSkipped   PersistOutcome = "PERSIST_SKIPPED"
	PersistOutcomeFailed    PersistOutcome = "PERSIST_FAILED"
)

// MetricLabel returns the lowercase label used in metrics
func (o PersistOutcome) MetricLabel() string {
	switch o {
	case PersistOutcomePersisted:
		return "persisted"
	case PersistOutcomeSkipped:
		return "skipped"
	case PersistOutcomeFailed:
		return "failed"
	}
	return "unknown"
}

package errors

import "fmt"

// Kind classifies an engine failure. Kinds map one-to-one onto the
// containment rules: every kind except KindPersistence is absorbed at the
// component that produced it and reported as a structured result.
type Kind string

const (
	KindCollection     Kind = "collection"      // one metric probe failed
	KindProbe          Kind = "probe"           // one health check failed
	KindRuleEvaluation Kind = "rule_evaluation" // malformed rule skipped
	KindDelivery       Kind = "delivery"        // one channel send failed
	KindPersistence    Kind = "persistence"     // store write failed, caller may retry
)

// EngineError carries the failure kind plus the entity it concerns.
type EngineError struct {
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *EngineError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s error (%s): %s", e.Kind, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// New creates an EngineError for the given kind and subject.
func New(kind Kind, subject, message string) *EngineError {
	return &EngineError{Kind: kind, Subject: subject, Message: message}
}

// Wrap creates an EngineError wrapping an underlying cause.
func Wrap(kind Kind, subject string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: kind, Subject: subject, Message: err.Error(), Err: err}
}

// IsKind reports whether err is an EngineError of the given kind.
func IsKind(err error, kind Kind) bool {
	ee, ok := err.(*EngineError)
	return ok && ee.Kind == kind
}

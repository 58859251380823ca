package apiclient

import dErrors "meridian/pkg/domain-errors"

// Envelope is the backend's standard response wrapper.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// Check returns an error when the backend flagged the call as unsuccessful,
// using fallback when the backend sent no message.
func (e *Envelope[T]) Check(fallback string) error {
	if e.Success {
		return nil
	}
	msg := e.Message
	if msg == "" {
		msg = fallback
	}
	return dErrors.New(dErrors.CodeBadRequest, msg)
}

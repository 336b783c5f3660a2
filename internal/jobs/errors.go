package jobs

import "fmt"

type ErrInvalidPayload struct {
	error
}

func NewErrInvalidPayload(jobID string, reason string) *ErrInvalidPayload {
	return &ErrInvalidPayload{fmt.Errorf("job %s has an invalid payload: %s", jobID, reason)}
}

package domain

// Envelope statuses returned by the portal
const (
	StatusSuccess = "Success"
	StatusFailure = "Failure"
	StatusError   = "Error"
)

// Envelope is the uniform response wrapper of every portal endpoint
type Envelope[T any] struct {
	Status     string `json:"Status"`
	Message    string `json:"Message,omitempty"`
	MasterData T      `json:"MasterData,omitempty"`
}

// IsSuccess reports a "Success" status; anything else is a recoverable failure.
func (e *Envelope[T]) IsSuccess() bool {
	return e != nil && e.Status == StatusSuccess
}

// StatusReply is an envelope whose MasterData the engine does not need.
type StatusReply = Envelope[any]

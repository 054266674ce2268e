package models

// IdempotencyRecord is the stored outcome of a mutating request.
// A record without a status code is still being processed.
type IdempotencyRecord struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (r *IdempotencyRecord) Done() bool {
	return r != nil && r.StatusCode != 0
}

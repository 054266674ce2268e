package models

const ParseModeHTML = "HTML"

const (
	// DateLayout is the wire and storage format of service_date.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire and storage format of service_time.
	TimeLayout = "15:04"
)

const (
	// DefaultMaxAdvanceDays how far ahead a booking may be placed
	DefaultMaxAdvanceDays = 90

	// DefaultOpenHour first bookable hour, inclusive
	DefaultOpenHour = 9

	// DefaultCloseHour last bookable hour, exclusive
	DefaultCloseHour = 18

	// DefaultMinAddressLength minimum trimmed address length
	DefaultMinAddressLength = 10

	// DefaultMaxInstructionsLength cap for special instructions
	DefaultMaxInstructionsLength = 500

	// TopServicesLimit size of the dashboard top list
	TopServicesLimit = 5

	// WorkerQueueSize in-memory queue size of the sheets worker
	WorkerQueueSize = 128

	// DefaultIdempotencyTTL lifetime of an idempotency record in seconds
	DefaultIdempotencyTTL = 24 * 60 * 60
)

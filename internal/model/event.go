package model

import "time"

// KioskEvent kinds published on the event feed.
const (
	EventRecognized         = "recognized"
	EventAlreadyRegistered  = "already_registered"
	EventNotRecognized      = "not_recognized"
	EventRecognitionFailed  = "recognition_failed"
	EventCameraError        = "camera_error"
	EventRegistered         = "registered"
	EventRegistrationFailed = "registration_failed"
)

// KioskEvent is an outcome the kiosk reports to its journal.
type KioskEvent struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	DocumentNumber string    `json:"document_number,omitempty"`
	Name           string    `json:"name,omitempty"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

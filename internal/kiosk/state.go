package kiosk

import (
	"fmt"

	"attendance-kiosk/internal/model"
)

// Messages shown to the person in front of the kiosk.
const (
	MsgCameraError     = "Error capturing the image. Check the camera."
	MsgNotRecognized   = "Person not recognized"
	MsgSystemError     = "System error"
	MsgWelcome         = "Welcome! Attendance recorded."
	MsgDocumentExists  = "This document is already registered"
	MsgIncompleteDraft = "Complete all required fields"
	MsgInvalidEmail    = "Enter a valid email address"
	MsgInvalidRole     = "Select a valid role"
	MsgInvalidGrade    = "Select a valid grade"
	MsgRegistered      = "User registered successfully"
	MsgRegisterFailed  = "Error registering user"
)

// alreadyCheckedIn is the message for a repeat recognition on the same day.
func alreadyCheckedIn(u *model.RecognizedUser) string {
	return fmt.Sprintf("%s %s already checked in today.", u.FirstName, u.LastName)
}

// Level tells the renderer how to style the current message.
type Level string

const (
	LevelNone    Level = ""
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// State is everything the kiosk renders. It is only changed by Reduce.
type State struct {
	Mode           model.Mode            `json:"mode"`
	Message        string                `json:"message"`
	Level          Level                 `json:"level"`
	RecognizedUser *model.RecognizedUser `json:"recognized_user"`
	Draft          Draft                 `json:"draft"`
	DocumentExists bool                  `json:"document_exists"`
	Submitting     bool                  `json:"submitting"`
}

// Initial is the state a kiosk starts in.
func Initial() State {
	return State{Mode: model.ModeRecognize}
}

// EventKind keys the reducer.
type EventKind int

const (
	EventModeChanged EventKind = iota
	EventCaptureFailed
	EventRecognized
	EventNotRecognized
	EventRecognitionFailed
	EventDocumentChecked
	EventDraftEdited
	EventSubmitStarted
	EventSubmitSucceeded
	EventSubmitFailed
	EventSubmitBlocked
	EventMessageCleared
)

var eventNames = map[EventKind]string{
	EventModeChanged:       "mode_changed",
	EventCaptureFailed:     "capture_failed",
	EventRecognized:        "recognized",
	EventNotRecognized:     "not_recognized",
	EventRecognitionFailed: "recognition_failed",
	EventDocumentChecked:   "document_checked",
	EventDraftEdited:       "draft_edited",
	EventSubmitStarted:     "submit_started",
	EventSubmitSucceeded:   "submit_succeeded",
	EventSubmitFailed:      "submit_failed",
	EventSubmitBlocked:     "submit_blocked",
	EventMessageCleared:    "message_cleared",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Cause says why a submission ended, or was refused, without registering
// anyone.
type Cause int

const (
	CauseServer Cause = iota
	CauseIncomplete
	CauseInvalidEmail
	CauseInvalidRole
	CauseInvalidGrade
	CauseDuplicate
	CauseCamera
)

// Event is an input to Reduce. Only the fields relevant to Kind are read.
type Event struct {
	Kind EventKind

	Mode   model.Mode            // EventModeChanged
	User   *model.RecognizedUser // EventRecognized
	Exists bool                  // EventDocumentChecked
	// Document is the number that was checked or submitted; a duplicate
	// result for a number the draft no longer holds does not flag it.
	Document string
	Field    Field  // EventDraftEdited
	Value    string // EventDraftEdited
	Cause    Cause  // EventSubmitFailed, EventSubmitBlocked
	Detail   string // EventSubmitFailed with CauseServer
}

// Reduce returns the state that follows s after e. It has no side effects.
func Reduce(s State, e Event) State {
	switch e.Kind {
	case EventModeChanged:
		if !e.Mode.Valid() || e.Mode == s.Mode {
			return s
		}
		s.Mode = e.Mode
		s.Message, s.Level = "", LevelNone
		if e.Mode == model.ModeRegister {
			s.RecognizedUser = nil
		}

	case EventCaptureFailed:
		s.Message, s.Level = MsgCameraError, LevelError

	case EventRecognized:
		// A recognition that lands after the kiosk left recognize mode is stale.
		if s.Mode != model.ModeRecognize || e.User == nil {
			return s
		}
		s.RecognizedUser = e.User
		if e.User.AlreadyRegistered {
			s.Message = alreadyCheckedIn(e.User)
		} else {
			s.Message = MsgWelcome
		}
		s.Level = LevelSuccess

	case EventNotRecognized:
		if s.Mode != model.ModeRecognize {
			return s
		}
		s.RecognizedUser = nil
		s.Message, s.Level = MsgNotRecognized, LevelError

	case EventRecognitionFailed:
		if s.Mode != model.ModeRecognize {
			return s
		}
		s.RecognizedUser = nil
		s.Message, s.Level = MsgSystemError, LevelError

	case EventDocumentChecked:
		if e.Document != s.Draft.DocumentNumber {
			return s
		}
		s.DocumentExists = e.Exists
		if e.Exists {
			s.Message, s.Level = MsgDocumentExists, LevelError
		} else {
			s.Message, s.Level = "", LevelNone
		}

	case EventDraftEdited:
		s.Draft = s.Draft.With(e.Field, e.Value)
		if e.Field == FieldDocumentNumber {
			s.DocumentExists = false
		}

	case EventSubmitStarted:
		s.Submitting = true

	case EventSubmitSucceeded:
		s.Submitting = false
		s.Draft = Draft{}
		s.DocumentExists = false
		s.Message, s.Level = MsgRegistered, LevelSuccess

	case EventSubmitFailed:
		s.Submitting = false
		s.Level = LevelError
		switch e.Cause {
		case CauseIncomplete, CauseInvalidEmail, CauseInvalidRole, CauseInvalidGrade:
			s.Message = blockedMessage(e.Cause)
		case CauseDuplicate:
			if e.Document == s.Draft.DocumentNumber {
				s.DocumentExists = true
			}
			s.Message = MsgDocumentExists
		case CauseCamera:
			s.Message = MsgCameraError
		default:
			s.Message = MsgRegisterFailed
			if e.Detail != "" {
				s.Message = e.Detail
			}
		}

	case EventSubmitBlocked:
		// Rejected before anything was sent; an in-flight submission is untouched.
		s.Message, s.Level = blockedMessage(e.Cause), LevelError

	case EventMessageCleared:
		s.Message, s.Level = "", LevelNone
	}
	return s
}

func blockedMessage(c Cause) string {
	switch c {
	case CauseInvalidEmail:
		return MsgInvalidEmail
	case CauseInvalidRole:
		return MsgInvalidRole
	case CauseInvalidGrade:
		return MsgInvalidGrade
	}
	return MsgIncompleteDraft
}

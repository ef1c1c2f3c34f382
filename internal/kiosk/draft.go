package kiosk

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"attendance-kiosk/internal/model"
)

// Field names a registration form input.
type Field string

const (
	FieldDocumentNumber Field = "document_number"
	FieldFirstName      Field = "first_name"
	FieldLastName       Field = "last_name"
	FieldEmail          Field = "email"
	FieldRoleID         Field = "role_id"
	FieldGradeID        Field = "grade_id"
)

// Fields lists the form inputs in display order.
var Fields = []Field{FieldDocumentNumber, FieldFirstName, FieldLastName, FieldEmail, FieldRoleID, FieldGradeID}

// ParseField validates a form input name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// Draft is the registration form as typed. Values stay strings until
// Payload converts them.
type Draft struct {
	DocumentNumber string `json:"document_number"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	RoleID         string `json:"role_id"`
	GradeID        string `json:"grade_id"`
}

// With returns a copy of d with one field replaced. Leaving the student
// role drops any selected grade.
func (d Draft) With(f Field, v string) Draft {
	switch f {
	case FieldDocumentNumber:
		d.DocumentNumber = v
	case FieldFirstName:
		d.FirstName = v
	case FieldLastName:
		d.LastName = v
	case FieldEmail:
		d.Email = v
	case FieldRoleID:
		d.RoleID = v
		if !d.IsStudent() {
			d.GradeID = ""
		}
	case FieldGradeID:
		d.GradeID = v
	}
	return d
}

// IsStudent reports whether the selected role is Student.
func (d Draft) IsStudent() bool {
	r, ok := model.ParseRole(d.RoleID)
	return ok && r == model.RoleStudent
}

// Empty reports whether d is the blank form.
func (d Draft) Empty() bool {
	return d == Draft{}
}

// ErrIncompleteDraft is returned when required fields are missing. Errors
// for filled-in but unusable values wrap it too.
var ErrIncompleteDraft = errors.New("registration draft is incomplete")

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrUnknownRole  = errors.New("unknown role")
	ErrInvalidGrade = errors.New("invalid grade")
)

// Validate checks that every required field is filled and, for students,
// that a grade is selected.
func (d Draft) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  Field
		value string
	}{
		{FieldDocumentNumber, d.DocumentNumber},
		{FieldFirstName, d.FirstName},
		{FieldLastName, d.LastName},
		{FieldEmail, d.Email},
		{FieldRoleID, d.RoleID},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, string(f.name))
		}
	}
	if d.IsStudent() && strings.TrimSpace(d.GradeID) == "" {
		missing = append(missing, string(FieldGradeID))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteDraft, strings.Join(missing, ", "))
	}

	if _, ok := model.ParseRole(d.RoleID); !ok {
		return fmt.Errorf("%w: %w %q", ErrIncompleteDraft, ErrUnknownRole, d.RoleID)
	}
	// A bare address only; display-name forms would be sent verbatim.
	email := strings.TrimSpace(d.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return fmt.Errorf("%w: %w %q", ErrIncompleteDraft, ErrInvalidEmail, d.Email)
	}
	if d.IsStudent() {
		if _, err := strconv.Atoi(d.GradeID); err != nil {
			return fmt.Errorf("%w: %w %q", ErrIncompleteDraft, ErrInvalidGrade, d.GradeID)
		}
	}
	return nil
}

// blockCause maps a Validate error to what the kiosk tells the user.
func blockCause(err error) Cause {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		return CauseInvalidEmail
	case errors.Is(err, ErrUnknownRole):
		return CauseInvalidRole
	case errors.Is(err, ErrInvalidGrade):
		return CauseInvalidGrade
	}
	return CauseIncomplete
}

// Payload converts a validated draft into the registration body.
func (d Draft) Payload() (model.NewUser, error) {
	if err := d.Validate(); err != nil {
		return model.NewUser{}, err
	}
	role, _ := strconv.Atoi(d.RoleID)
	user := model.NewUser{
		DocumentNumber: strings.TrimSpace(d.DocumentNumber),
		FirstName:      strings.TrimSpace(d.FirstName),
		LastName:       strings.TrimSpace(d.LastName),
		Email:          strings.TrimSpace(d.Email),
		RoleID:         role,
	}
	if d.IsStudent() {
		grade, _ := strconv.Atoi(d.GradeID)
		user.GradeID = &grade
	}
	return user, nil
}

// Preview is the summary an operator confirms before a registration is sent.
type Preview struct {
	DocumentNumber string `json:"document_number"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	Grade          string `json:"grade,omitempty"`
}

// PreviewWith renders the draft using catalog for the grade name.
func (d Draft) PreviewWith(catalog model.GradeCatalog) Preview {
	role, _ := model.ParseRole(d.RoleID)
	p := Preview{
		DocumentNumber: d.DocumentNumber,
		FullName:       strings.TrimSpace(d.FirstName + " " + d.LastName),
		Email:          d.Email,
		Role:           role.Name(),
	}
	if d.IsStudent() {
		p.Grade = "N/A"
		if id, err := strconv.Atoi(d.GradeID); err == nil {
			if g, ok := catalog.Lookup(id); ok {
				p.Grade = g.Name
			}
		}
	}
	return p
}

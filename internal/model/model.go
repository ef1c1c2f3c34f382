package model

// Mode selects which kiosk workflow is active.
type Mode string

const (
	ModeRecognize Mode = "recognize"
	ModeRegister  Mode = "register"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeRecognize || m == ModeRegister
}

// RecognizedUser is the API's answer to a successful recognition.
type RecognizedUser struct {
	DocumentNumber    string    `json:"document_number"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             string    `json:"email"`
	RoleID            int       `json:"role_id"`
	GradeID           *int      `json:"grade_id"`
	CheckIn           Timestamp `json:"check_in"`
	AlreadyRegistered bool      `json:"already_registered"`
	FaceImage         FaceImage `json:"face_image"`
}

// FullName joins first and last name.
func (u RecognizedUser) FullName() string {
	return u.FirstName + " " + u.LastName
}

// NewUser is the registration payload sent as the "user" multipart field.
type NewUser struct {
	DocumentNumber string `json:"document_number"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	RoleID         int    `json:"role_id"`
	GradeID        *int   `json:"grade_id"`
}

// DayType classifies a non-working day.
type DayType string

const (
	DayHoliday  DayType = "holiday"
	DayVacation DayType = "vacation"
	DaySpecial  DayType = "special"
)

// DayTypes lists the accepted day types in display order.
var DayTypes = []DayType{DayHoliday, DayVacation, DaySpecial}

// Valid reports whether t is one of DayTypes.
func (t DayType) Valid() bool {
	for _, v := range DayTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Title is the heading a day type is displayed under.
func (t DayType) Title() string {
	switch t {
	case DayHoliday:
		return "Holidays"
	case DayVacation:
		return "Vacations"
	case DaySpecial:
		return "Special days"
	}
	return string(t)
}

// NonWorkingDay is a date on which attendance is not expected.
type NonWorkingDay struct {
	ID          int     `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Type        DayType `json:"type"`
}

// AttendanceStats summarises a reporting period.
type AttendanceStats struct {
	Total   int `json:"total"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// AbsenceRecord is one user's absence tally for a period.
type AbsenceRecord struct {
	ID             int        `json:"id"`
	DocumentNumber string     `json:"document_number"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	DaysAbsent     int        `json:"daysAbsent"`
	CheckIn        *Timestamp `json:"check_in"`
}

// AttendanceReport is the body of GET /attendance/.
type AttendanceReport struct {
	Stats            AttendanceStats            `json:"stats"`
	AttendanceByRole map[string][]AbsenceRecord `json:"attendance_by_role"`
}

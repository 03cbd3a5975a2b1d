package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

const DefaultDurationMinutes = 60

type Appointment struct {
	ID                 uuid.UUID
	CustomerID         uuid.UUID
	EmployeeID         uuid.UUID
	Company            *string
	ConsultationTypeID uuid.UUID
	ModalityID         uuid.UUID
	Description        *string
	Address            *string
	StartTime          time.Time
	EndTime            time.Time
	DurationMinutes    int
	StatusID           uuid.UUID
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Interval returns the half-open range [StartTime, EndTime).
func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

// AppointmentDetail is an appointment joined with its vocabulary labels and
// the assigned employee.
type AppointmentDetail struct {
	Appointment
	ConsultationType  string
	Modality          string
	EmployeeName      *string
	EmployeeSpecialty *string
}

// Label is a row of a vocabulary table.
type Label struct {
	ID   uuid.UUID
	Name string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter narrows ListAppointments. Nil fields are not applied.
type ListFilter struct {
	EmployeeID *uuid.UUID
	CustomerID *uuid.UUID
	Status     *Status
}

type ListResult struct {
	Appointments []AppointmentDetail
	IsStaff      bool
}

// CreateRequest is the raw booking payload as received from the client.
// Empty strings mean the field was not supplied.
type CreateRequest struct {
	CustomerID         string
	EmployeeID         string
	Company            string
	ConsultationTypeID string
	Description        string
	StartTime          string
	ModalityID         string
	Address            string
	DurationMinutes    any
}

// CreateInput is a CreateRequest that passed validation.
type CreateInput struct {
	CustomerID         *uuid.UUID
	EmployeeID         *uuid.UUID
	Company            SanitizedText
	ConsultationTypeID uuid.UUID
	Description        SanitizedText
	StartTime          time.Time
	ModalityID         uuid.UUID
	Address            SanitizedText
	DurationMinutes    int
}

// EndTime is StartTime plus the booked duration.
func (in CreateInput) EndTime() time.Time {
	return in.StartTime.Add(time.Duration(in.DurationMinutes) * time.Minute)
}

type UpdateStatusRequest struct {
	ID         string
	StatusName string
}

type DeleteResult struct {
	Message string
}

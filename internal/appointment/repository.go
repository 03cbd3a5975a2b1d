package appointment

import (
	"context"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	// LockEmployeeSchedule serializes conflict check and write for one
	// employee until the surrounding transaction ends.
	LockEmployeeSchedule(ctx context.Context, employeeID uuid.UUID) error

	// For conflict checks
	ListApprovedOverlapping(ctx context.Context, employeeID uuid.UUID, iv Interval, excludeID *uuid.UUID) ([]Appointment, error)

	// Vocabulary
	GetStatusID(ctx context.Context, status Status) (uuid.UUID, error)
	ConsultationTypeExists(ctx context.Context, id uuid.UUID) (bool, error)
	ModalityExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListConsultationTypes(ctx context.Context) ([]Label, error)
	ListModalities(ctx context.Context) ([]Label, error)

	// Reads
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error)

	// Writes
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, statusID uuid.UUID) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDeleted       = "APPOINTMENT_DELETED"
)

// RoleResolver maps a profile id to its role. It returns
// auth.ErrProfileNotFound for unknown ids.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID uuid.UUID) (auth.Role, error)
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	roles  RoleResolver
	logger *zap.Logger

	loc                        *time.Location
	allowCustomerCancelPending bool
	enforceApprovalConflicts   bool
	now                        func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, roles RoleResolver, cfg config.Config, logger *zap.Logger) *Service {
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:                       repo,
		locker:                     locker,
		roles:                      roles,
		logger:                     logger,
		loc:                        loc,
		allowCustomerCancelPending: cfg.AllowCustomerCancelPending,
		enforceApprovalConflicts:   cfg.EnforceApprovalConflicts,
		now:                        time.Now,
	}
}

// Create books an appointment. Staff book on behalf of a client and the
// appointment is approved immediately; customers book with an employee and
// the appointment waits as pending.
//
// The per-employee Redis lock rejects concurrent bookings early, and the
// conflict check plus insert run under a transaction-scoped advisory lock.
func (s *Service) Create(ctx context.Context, caller auth.Caller, req CreateRequest) (*AppointmentDetail, error) {
	in, err := ValidateCreatePayload(req, s.loc)
	if err != nil {
		return nil, err
	}

	var (
		customerID, employeeID uuid.UUID
		initial                Status
	)
	switch caller.Role {
	case auth.RoleEmployee, auth.RoleAdmin:
		if in.CustomerID == nil {
			return nil, invalid("Client (customerId) is required for employee booking")
		}
		customerID, employeeID, initial = *in.CustomerID, caller.ID, StatusApproved
	case auth.RoleCustomer:
		if in.EmployeeID == nil {
			return nil, invalid("Employee is required")
		}
		customerID, employeeID, initial = caller.ID, *in.EmployeeID, StatusPending
	default:
		return nil, forbidden("Unknown role")
	}

	if err := ValidateAppointmentWindow(in.StartTime, s.now(), s.loc); err != nil {
		return nil, err
	}
	slot := Interval{Start: in.StartTime, End: in.EndTime()}

	var created *AppointmentDetail
	err = s.locker.WithEmployeeLock(ctx, employeeID, func(lockCtx context.Context) error {
		return s.repo.WithTx(lockCtx, func(ctx context.Context, tx Repository) error {
			if err := tx.LockEmployeeSchedule(ctx, employeeID); err != nil {
				return err
			}
			if err := CheckConflict(ctx, tx, employeeID, slot, nil); err != nil {
				return err
			}

			statusID, err := tx.GetStatusID(ctx, initial)
			if err != nil {
				return fmt.Errorf("failed to determine appointment status: %w", err)
			}

			if err := s.verifyReferences(ctx, tx, in, customerID, employeeID); err != nil {
				return err
			}

			appt, err := tx.InsertAppointment(ctx, Appointment{
				CustomerID:         customerID,
				EmployeeID:         employeeID,
				Company:            in.Company.Ptr(),
				ConsultationTypeID: in.ConsultationTypeID,
				ModalityID:         in.ModalityID,
				Description:        in.Description.Ptr(),
				Address:            in.Address.Ptr(),
				StartTime:          slot.Start,
				EndTime:            slot.End,
				DurationMinutes:    in.DurationMinutes,
				StatusID:           statusID,
			})
			if err != nil {
				return err
			}

			if err := s.logEvent(ctx, tx, appt.ID, EventAppointmentCreated, map[string]any{
				"customer_id": customerID.String(),
				"employee_id": employeeID.String(),
				"start_time":  slot.Start,
				"end_time":    slot.End,
				"status":      initial,
				"booked_by":   caller.Role.String(),
			}); err != nil {
				return err
			}

			created, err = tx.GetAppointmentDetail(ctx, appt.ID)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("employee_id", employeeID.String()),
		zap.String("status", string(created.Status)),
	)
	return created, nil
}

func (s *Service) verifyReferences(ctx context.Context, tx Repository, in CreateInput, customerID, employeeID uuid.UUID) error {
	ok, err := tx.ConsultationTypeExists(ctx, in.ConsultationTypeID)
	if err != nil {
		return fmt.Errorf("check consultation type: %w", err)
	}
	if !ok {
		return invalid("Invalid consultation type")
	}

	ok, err = tx.ModalityExists(ctx, in.ModalityID)
	if err != nil {
		return fmt.Errorf("check modality: %w", err)
	}
	if !ok {
		return invalid("Invalid modality")
	}

	role, err := s.roles.ResolveRole(ctx, employeeID)
	switch {
	case errors.Is(err, auth.ErrProfileNotFound):
		return invalid("Invalid employee")
	case err != nil:
		return fmt.Errorf("check employee: %w", err)
	case !role.IsStaff():
		return invalid("Invalid employee")
	}

	if _, err := s.roles.ResolveRole(ctx, customerID); err != nil {
		if errors.Is(err, auth.ErrProfileNotFound) {
			return invalid("Invalid client")
		}
		return fmt.Errorf("check client: %w", err)
	}
	return nil
}

// List returns the appointments visible to caller. employeeFilter only
// applies to customers, who then see that employee's approved bookings.
func (s *Service) List(ctx context.Context, caller auth.Caller, employeeFilter string) (*ListResult, error) {
	var filter ListFilter

	switch caller.Role {
	case auth.RoleEmployee, auth.RoleAdmin:
		id := caller.ID
		filter.EmployeeID = &id
	case auth.RoleCustomer:
		if employeeFilter == "" {
			id := caller.ID
			filter.CustomerID = &id
			break
		}
		employeeID, err := parseID(employeeFilter, "Invalid employee ID format")
		if err != nil {
			return nil, err
		}
		approved := StatusApproved
		filter.EmployeeID = &employeeID
		filter.Status = &approved
	default:
		return nil, forbidden("Unknown role")
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return &ListResult{Appointments: appointments, IsStaff: caller.IsStaff()}, nil
}

// UpdateStatus moves an appointment to another status. Staff act on their own
// schedule, customers on their own bookings. Re-applying the current status
// succeeds.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Caller, req UpdateStatusRequest) (*AppointmentDetail, error) {
	id, err := parseID(req.ID, "Invalid appointment ID format")
	if err != nil {
		return nil, err
	}
	target, err := ValidateStatusTransitionRequest(req.StatusName)
	if err != nil {
		return nil, err
	}

	var updated *AppointmentDetail
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		statusID, err := tx.GetStatusID(ctx, target)
		if err != nil {
			if errors.Is(err, ErrStatusNotFound) {
				return invalid("Invalid status")
			}
			return fmt.Errorf("resolve status: %w", err)
		}

		appt, err := tx.GetAppointmentForUpdate(ctx, id)
		if err != nil {
			return err
		}

		switch caller.Role {
		case auth.RoleEmployee, auth.RoleAdmin:
			if appt.EmployeeID != caller.ID {
				return forbidden("You can only update your own appointments")
			}
		case auth.RoleCustomer:
			if appt.CustomerID != caller.ID {
				return forbidden("You can only update your own appointments")
			}
		default:
			return forbidden("Unknown role")
		}

		if !CanTransition(appt.Status, target) {
			return invalid(fmt.Sprintf("Cannot change status from %s to %s", appt.Status, target))
		}

		if s.enforceApprovalConflicts && target == StatusApproved && appt.Status != StatusApproved {
			if err := tx.LockEmployeeSchedule(ctx, appt.EmployeeID); err != nil {
				return err
			}
			if err := CheckConflict(ctx, tx, appt.EmployeeID, appt.Interval(), &appt.ID); err != nil {
				return err
			}
		}

		if err := tx.UpdateAppointmentStatus(ctx, id, statusID); err != nil {
			return err
		}

		if err := s.logEvent(ctx, tx, id, EventAppointmentStatusChanged, map[string]any{
			"from":       appt.Status,
			"to":         target,
			"changed_by": caller.ID.String(),
		}); err != nil {
			return err
		}

		updated, err = tx.GetAppointmentDetail(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment status updated",
		zap.String("appointment_id", id.String()),
		zap.String("status", string(target)),
	)
	return updated, nil
}

// Delete removes an appointment. Only staff may delete, unless customers are
// allowed to cancel their own pending bookings.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, rawID string) (*DeleteResult, error) {
	id, err := parseID(rawID, "Invalid appointment ID format")
	if err != nil {
		return nil, err
	}

	switch caller.Role {
	case auth.RoleEmployee, auth.RoleAdmin:
	case auth.RoleCustomer:
		if !s.allowCustomerCancelPending {
			return nil, forbidden("Customers cannot delete appointments")
		}
	default:
		return nil, forbidden("Unknown role")
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if !caller.IsStaff() {
			appt, err := tx.GetAppointmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if appt.CustomerID != caller.ID || appt.Status != StatusPending {
				return forbidden("Customers can only cancel their own pending appointments")
			}
		}

		if err := tx.DeleteAppointment(ctx, id); err != nil {
			return err
		}
		return s.logEvent(ctx, tx, id, EventAppointmentDeleted, map[string]any{
			"deleted_by": caller.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment deleted", zap.String("appointment_id", id.String()))
	return &DeleteResult{Message: "Deleted successfully"}, nil
}

func (s *Service) ConsultationTypes(ctx context.Context) ([]Label, error) {
	labels, err := s.repo.ListConsultationTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list consultation types: %w", err)
	}
	return labels, nil
}

func (s *Service) Modalities(ctx context.Context) ([]Label, error) {
	labels, err := s.repo.ListModalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modalities: %w", err)
	}
	return labels, nil
}

func (s *Service) logEvent(ctx context.Context, tx Repository, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	apptID := appointmentID
	return tx.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	})
}

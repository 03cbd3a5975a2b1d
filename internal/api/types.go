package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	CustomerID         string `json:"customerId"`
	EmployeeID         string `json:"employeeId"`
	Company            string `json:"company"`
	ConsultationTypeID string `json:"consultationTypeId"`
	Description        string `json:"description"`
	StartTime          string `json:"startTime"`
	ModalityID         string `json:"modalityId"`
	Address            string `json:"address"`
	DurationMinutes    any    `json:"durationMinutes"`
}

func (r CreateAppointmentRequest) toDomain() appointment.CreateRequest {
	return appointment.CreateRequest{
		CustomerID:         r.CustomerID,
		EmployeeID:         r.EmployeeID,
		Company:            r.Company,
		ConsultationTypeID: r.ConsultationTypeID,
		Description:        r.Description,
		StartTime:          r.StartTime,
		ModalityID:         r.ModalityID,
		Address:            r.Address,
		DurationMinutes:    r.DurationMinutes,
	}
}

type UpdateStatusRequest struct {
	ID         string `json:"id"`
	StatusName string `json:"statusName"`
}

type DeleteAppointmentRequest struct {
	ID string `json:"id"`
}

type NameRef struct {
	Name string `json:"name"`
}

type EmployeeRef struct {
	FullName  *string  `json:"fullName"`
	Specialty *NameRef `json:"specialty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID    `json:"id"`
	CustomerID         uuid.UUID    `json:"customerId"`
	EmployeeID         uuid.UUID    `json:"employeeId"`
	Company            *string      `json:"company"`
	ConsultationTypeID uuid.UUID    `json:"consultationTypeId"`
	ModalityID         uuid.UUID    `json:"modalityId"`
	Description        *string      `json:"description"`
	Address            *string      `json:"address"`
	StartTime          time.Time    `json:"startTime"`
	EndTime            time.Time    `json:"endTime"`
	DurationMinutes    int          `json:"durationMinutes"`
	StatusID           uuid.UUID    `json:"statusId"`
	ConsultationType   NameRef      `json:"consultationType"`
	Modality           NameRef      `json:"modality"`
	Status             NameRef      `json:"status"`
	Employee           *EmployeeRef `json:"employee,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

func toAppointmentResponse(d appointment.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                 d.ID,
		CustomerID:         d.CustomerID,
		EmployeeID:         d.EmployeeID,
		Company:            d.Company,
		ConsultationTypeID: d.ConsultationTypeID,
		ModalityID:         d.ModalityID,
		Description:        d.Description,
		Address:            d.Address,
		StartTime:          d.StartTime,
		EndTime:            d.EndTime,
		DurationMinutes:    d.DurationMinutes,
		StatusID:           d.StatusID,
		ConsultationType:   NameRef{Name: d.ConsultationType},
		Modality:           NameRef{Name: d.Modality},
		Status:             NameRef{Name: string(d.Status)},
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
	if d.EmployeeName != nil || d.EmployeeSpecialty != nil {
		resp.Employee = &EmployeeRef{FullName: d.EmployeeName}
		if d.EmployeeSpecialty != nil {
			resp.Employee.Specialty = &NameRef{Name: *d.EmployeeSpecialty}
		}
	}
	return resp
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	IsStaff      bool                  `json:"isStaff"`
}

type LabelResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

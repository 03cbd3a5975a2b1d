package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, db: pool}
}

func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(ctx, &PgRepository{pool: r.pool, db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *PgRepository) LockEmployeeSchedule(ctx context.Context, employeeID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, employeeID.String())
	if err != nil {
		return fmt.Errorf("advisory lock employee schedule: %w", err)
	}
	return nil
}

// Helpers

const appointmentColumns = `
	a.id, a.customer_id, a.employee_id, a.company, a.consultation_type_id, a.modality_id,
	a.description, a.address, a.start_time, a.end_time, a.duration_minutes,
	a.status_id, s.name, a.created_at, a.updated_at`

const detailSelect = `
	SELECT` + appointmentColumns + `,
	       ct.name, m.name, e.full_name, sp.name
	FROM appointments a
	JOIN appointment_statuses s ON s.id = a.status_id
	JOIN consultation_types ct ON ct.id = a.consultation_type_id
	JOIN modalities m ON m.id = a.modality_id
	LEFT JOIN profiles e ON e.id = a.employee_id
	LEFT JOIN specialties sp ON sp.id = e.specialty_id`

func appointmentDest(a *Appointment) []any {
	return []any{
		&a.ID,
		&a.CustomerID,
		&a.EmployeeID,
		&a.Company,
		&a.ConsultationTypeID,
		&a.ModalityID,
		&a.Description,
		&a.Address,
		&a.StartTime,
		&a.EndTime,
		&a.DurationMinutes,
		&a.StatusID,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(appointmentDest(&a)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	dest := append(appointmentDest(&d.Appointment),
		&d.ConsultationType,
		&d.Modality,
		&d.EmployeeName,
		&d.EmployeeSpecialty,
	)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) exists(ctx context.Context, query string, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, query, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *PgRepository) listLabels(ctx context.Context, query string) ([]Label, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Label, error) {
		var l Label
		err := row.Scan(&l.ID, &l.Name)
		return l, err
	})
}

// Interface methods

func (r *PgRepository) ListApprovedOverlapping(ctx context.Context, employeeID uuid.UUID, iv Interval, excludeID *uuid.UUID) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		JOIN appointment_statuses s ON s.id = a.status_id
		WHERE a.employee_id = $1
		  AND s.name = 'approved'
		  AND a.start_time < $3
		  AND a.end_time > $2
		  AND ($4::uuid IS NULL OR a.id <> $4)
	`, employeeID, iv.Start, iv.End, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetStatusID(ctx context.Context, status Status) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM appointment_statuses WHERE name = $1`, string(status)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrStatusNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

func (r *PgRepository) ConsultationTypeExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM consultation_types WHERE id = $1)`, id)
}

func (r *PgRepository) ModalityExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM modalities WHERE id = $1)`, id)
}

func (r *PgRepository) ListConsultationTypes(ctx context.Context) ([]Label, error) {
	return r.listLabels(ctx, `SELECT id, name FROM consultation_types ORDER BY name`)
}

func (r *PgRepository) ListModalities(ctx context.Context) ([]Label, error) {
	return r.listLabels(ctx, `SELECT id, name FROM modalities ORDER BY name`)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		JOIN appointment_statuses s ON s.id = a.status_id
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments a
		JOIN appointment_statuses s ON s.id = a.status_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return scanDetail(r.db.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id))
}

// listQuery renders filter as a WHERE clause over detailSelect with
// positional arguments, oldest start first.
func listQuery(filter ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.EmployeeID != nil {
		args = append(args, *filter.EmployeeID)
		conds = append(conds, fmt.Sprintf("a.employee_id = $%d", len(args)))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conds = append(conds, fmt.Sprintf("a.customer_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conds = append(conds, fmt.Sprintf("s.name = $%d", len(args)))
	}

	query := detailSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY a.start_time ASC", args
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]AppointmentDetail, error) {
	query, args := listQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]AppointmentDetail, 0)
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO appointments (
				id, customer_id, employee_id, company, consultation_type_id, modality_id,
				description, address, start_time, end_time, duration_minutes, status_id,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
			RETURNING *
		)
		SELECT`+appointmentColumns+`
		FROM inserted a
		JOIN appointment_statuses s ON s.id = a.status_id
	`,
		a.ID, a.CustomerID, a.EmployeeID, a.Company, a.ConsultationTypeID, a.ModalityID,
		a.Description, a.Address, a.StartTime, a.EndTime, a.DurationMinutes, a.StatusID,
	)

	created, err := scanAppointment(row)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, invalid("Invalid appointment reference")
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id, statusID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status_id = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, statusID)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// IsForeignKeyViolation reports a 23503 error from Postgres.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

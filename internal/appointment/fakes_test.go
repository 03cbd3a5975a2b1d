package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	redisclient "github.com/hackgods/consultation-scheduling/internal/redis"
)

// memRepo is an in-memory Repository. Transactions are serialized and roll
// back the appointment and event state when fn fails.
type memRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	statuses   map[Status]uuid.UUID
	types      map[uuid.UUID]string
	modalities map[uuid.UUID]string
	employees  map[uuid.UUID]string
	appts      map[uuid.UUID]Appointment
	events     []EventLog

	failEvents error
	clock      func() time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		statuses: map[Status]uuid.UUID{
			StatusPending:  uuid.New(),
			StatusApproved: uuid.New(),
			StatusRejected: uuid.New(),
		},
		types:      map[uuid.UUID]string{},
		modalities: map[uuid.UUID]string{},
		employees:  map[uuid.UUID]string{},
		appts:      map[uuid.UUID]Appointment{},
		clock:      time.Now,
	}
}

func (r *memRepo) statusName(id uuid.UUID) Status {
	for name, sid := range r.statuses {
		if sid == id {
			return name
		}
	}
	return ""
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[uuid.UUID]Appointment, len(r.appts))
	for k, v := range r.appts {
		snapshot[k] = v
	}
	eventCount := len(r.events)
	r.mu.Unlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.appts = snapshot
		r.events = r.events[:eventCount]
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memRepo) LockEmployeeSchedule(context.Context, uuid.UUID) error { return nil }

func (r *memRepo) ListApprovedOverlapping(_ context.Context, employeeID uuid.UUID, iv Interval, excludeID *uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appts {
		if a.EmployeeID != employeeID || a.Status != StatusApproved {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.StartTime.Before(iv.End) && a.EndTime.After(iv.Start) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepo) GetStatusID(_ context.Context, status Status) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.statuses[status]
	if !ok {
		return uuid.Nil, ErrStatusNotFound
	}
	return id, nil
}

func (r *memRepo) ConsultationTypeExists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.types[id]
	return ok, nil
}

func (r *memRepo) ModalityExists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.modalities[id]
	return ok, nil
}

func labels(m map[uuid.UUID]string) []Label {
	out := make([]Label, 0, len(m))
	for id, name := range m {
		out = append(out, Label{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *memRepo) ListConsultationTypes(context.Context) ([]Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return labels(r.types), nil
}

func (r *memRepo) ListModalities(context.Context) ([]Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return labels(r.modalities), nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) GetAppointmentForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.GetAppointmentByID(ctx, id)
}

func (r *memRepo) detail(a Appointment) AppointmentDetail {
	d := AppointmentDetail{
		Appointment:      a,
		ConsultationType: r.types[a.ConsultationTypeID],
		Modality:         r.modalities[a.ModalityID],
	}
	if name, ok := r.employees[a.EmployeeID]; ok {
		d.EmployeeName = &name
	}
	return d
}

func (r *memRepo) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f ListFilter) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]AppointmentDetail, 0)
	for _, a := range r.appts {
		if f.EmployeeID != nil && a.EmployeeID != *f.EmployeeID {
			continue
		}
		if f.CustomerID != nil && a.CustomerID != *f.CustomerID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, r.detail(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memRepo) InsertAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = r.statusName(a.StatusID)
	a.CreatedAt = r.clock()
	a.UpdatedAt = a.CreatedAt
	r.appts[a.ID] = a
	return &a, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id, statusID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.StatusID = statusID
	a.Status = r.statusName(statusID)
	a.UpdatedAt = r.clock()
	r.appts[id] = a
	return nil
}

func (r *memRepo) DeleteAppointment(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appts, id)
	return nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEvents != nil {
		return r.failEvents
	}
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fakeRoles map[uuid.UUID]auth.Role

func (f fakeRoles) ResolveRole(_ context.Context, id uuid.UUID) (auth.Role, error) {
	role, ok := f[id]
	if !ok {
		return auth.RoleCustomer, auth.ErrProfileNotFound
	}
	return role, nil
}

type fakeLocker struct {
	mu    sync.Mutex
	busy  bool
	calls []uuid.UUID
}

func (l *fakeLocker) WithEmployeeLock(ctx context.Context, employeeID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.calls = append(l.calls, employeeID)
	busy := l.busy
	l.mu.Unlock()

	if busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

var errBoom = errors.New("boom")

// queueLocker makes callers wait for the per-employee lock. When hold is
// set, each holder reports on acquired and waits on hold before running fn.
type queueLocker struct {
	mu       sync.Mutex
	acquired chan struct{}
	hold     chan struct{}
}

func (l *queueLocker) WithEmployeeLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.acquired != nil {
		l.acquired <- struct{}{}
	}
	if l.hold != nil {
		<-l.hold
	}
	return fn(ctx)
}

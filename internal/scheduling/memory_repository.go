package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a map-backed Repository used by tests and single-node
// development setups. Transactions serialize on txMu: fn runs against a deep
// copy which replaces the live state only when fn succeeds, which gives the
// same all-or-nothing guarantee the Postgres implementation has.
type MemoryRepository struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *memState
	inTx  bool
}

type memState struct {
	doctors        map[uuid.UUID]Doctor
	patients       map[uuid.UUID]Patient
	availabilities map[uuid.UUID]Availability
	slots          map[uuid.UUID]TimeSlot
	appointments   map[uuid.UUID]Appointment
	events         []EventLog
	nextEventID    int64
}

func newMemState() *memState {
	return &memState{
		doctors:        make(map[uuid.UUID]Doctor),
		patients:       make(map[uuid.UUID]Patient),
		availabilities: make(map[uuid.UUID]Availability),
		slots:          make(map[uuid.UUID]TimeSlot),
		appointments:   make(map[uuid.UUID]Appointment),
		nextEventID:    1,
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.doctors {
		c.doctors[k] = v
	}
	for k, v := range s.patients {
		c.patients[k] = v
	}
	for k, v := range s.availabilities {
		c.availabilities[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	for k, v := range s.appointments {
		c.appointments[k] = v
	}
	c.events = append(c.events, s.events...)
	c.nextEventID = s.nextEventID
	return c
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: newMemState()}
}

func (m *MemoryRepository) WithinTx(_ context.Context, fn func(Repository) error) error {
	if m.inTx {
		return fn(m)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	work := &MemoryRepository{state: m.state.clone(), inTx: true}
	m.mu.Unlock()

	if err := fn(work); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = work.state
	m.mu.Unlock()
	return nil
}

// Seed helpers

func (m *MemoryRepository) AddDoctor(d Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.doctors[d.ID] = d
}

func (m *MemoryRepository) AddPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.patients[p.ID] = p
}

func (m *MemoryRepository) AddSlot(s TimeSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.slots[s.ID] = s
}

func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EventLog, len(m.state.events))
	copy(out, m.state.events)
	return out
}

// Directory

func (m *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *MemoryRepository) ListDoctorIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.state.doctors))
	for id := range m.state.doctors {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.state.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

// Availabilities

func (m *MemoryRepository) CreateAvailability(_ context.Context, av *Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	av.CreatedAt = now
	av.UpdatedAt = now
	m.state.availabilities[av.ID] = *av
	return nil
}

func (m *MemoryRepository) UpdateAvailability(_ context.Context, av *Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.state.availabilities[av.ID]
	if !ok {
		return ErrAvailabilityNotFound
	}
	av.CreatedAt = cur.CreatedAt
	av.UpdatedAt = time.Now()
	m.state.availabilities[av.ID] = *av
	return nil
}

func (m *MemoryRepository) DeleteAvailability(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.availabilities[id]; !ok {
		return ErrAvailabilityNotFound
	}
	delete(m.state.availabilities, id)
	return nil
}

func (m *MemoryRepository) GetAvailabilityByID(_ context.Context, id uuid.UUID) (*Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	av, ok := m.state.availabilities[id]
	if !ok {
		return nil, ErrAvailabilityNotFound
	}
	return &av, nil
}

func (m *MemoryRepository) ListAvailabilities(_ context.Context, doctorID uuid.UUID) ([]Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Availability
	for _, av := range m.state.availabilities {
		if av.DoctorID == doctorID {
			out = append(out, av)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListRegularForWeekday(_ context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Availability
	for _, av := range m.state.availabilities {
		if av.DoctorID == doctorID && av.Weekday == weekday && av.ScheduleType == ScheduleRegular {
			out = append(out, av)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListTemporaryForDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Availability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Availability
	for _, av := range m.state.availabilities {
		if av.DoctorID == doctorID && av.ScheduleType == ScheduleTemporary &&
			av.EffectiveDate != nil && DateOnly(*av.EffectiveDate).Equal(DateOnly(date)) {
			out = append(out, av)
		}
	}
	return out, nil
}

func (m *MemoryRepository) HasDayOff(_ context.Context, doctorID uuid.UUID, date time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, av := range m.state.availabilities {
		if av.DoctorID == doctorID && av.ScheduleType == ScheduleDayOff &&
			av.EffectiveDate != nil && DateOnly(*av.EffectiveDate).Equal(DateOnly(date)) {
			return true, nil
		}
	}
	return false, nil
}

// Slots

func (m *MemoryRepository) CreateSlots(_ context.Context, slots []TimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, s := range slots {
		s.CreatedAt = now
		s.UpdatedAt = now
		m.state.slots[s.ID] = s
	}
	return nil
}

func (m *MemoryRepository) SlotExists(_ context.Context, doctorID uuid.UUID, date time.Time, start time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.state.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) && s.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) GetSlotByID(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.state.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) ListSlotsForDay(_ context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TimeSlot
	for _, s := range m.state.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryRepository) ClaimSlot(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.Status != SlotAvailable || s.CurrentPatients >= s.MaxPatients {
		return nil, ErrSlotNotAvailable
	}
	s.CurrentPatients++
	if s.CurrentPatients >= s.MaxPatients {
		s.Status = SlotBooked
		s.IsAvailable = false
	}
	s.UpdatedAt = time.Now()
	m.state.slots[id] = s
	return &s, nil
}

func (m *MemoryRepository) ReleaseSlot(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.CurrentPatients > 0 {
		s.CurrentPatients--
	}
	if s.Status == SlotBooked {
		s.Status = SlotAvailable
	}
	s.IsAvailable = s.Status != SlotCancelled
	s.UpdatedAt = time.Now()
	m.state.slots[id] = s
	return &s, nil
}

func (m *MemoryRepository) CancelSlot(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	s.Status = SlotCancelled
	s.IsAvailable = false
	s.UpdatedAt = time.Now()
	m.state.slots[id] = s
	return &s, nil
}

func (m *MemoryRepository) DeleteFutureUnbookedSlots(_ context.Context, availabilityID uuid.UUID, from time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, s := range m.state.slots {
		if s.AvailabilityID == nil || *s.AvailabilityID != availabilityID {
			continue
		}
		if s.StartTime.Before(from) || s.CurrentPatients > 0 || s.Status == SlotBooked {
			continue
		}
		delete(m.state.slots, id)
		removed++
	}
	return removed, nil
}

// Appointments

func (m *MemoryRepository) CreateAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	m.state.appointments[a.ID] = *a
	return nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.state.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.state.appointments[id] = a
	return &a, nil
}

func (m *MemoryRepository) SetAppointmentNotes(_ context.Context, id uuid.UUID, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Notes = notes
	a.UpdatedAt = time.Now()
	m.state.appointments[id] = a
	return nil
}

func (m *MemoryRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.state.appointments {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) ListAppointmentsByDoctorDay(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.state.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryRepository) FindOverdueConfirmed(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Appointment
	for _, a := range m.state.appointments {
		if (a.Status == StatusConfirmed || a.Status == StatusCheckedIn) && a.EndTime.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ActiveAppointmentForSlot(_ context.Context, slotID uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.state.appointments {
		if a.TimeSlotID == slotID && !a.Status.Terminal() {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

// Event log

func (m *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.state.nextEventID
	m.state.nextEventID++
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.state.events = append(m.state.events, ev)
	return nil
}

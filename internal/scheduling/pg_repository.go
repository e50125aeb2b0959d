package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same queries
// run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

func (r *PgRepository) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if _, alreadyTx := r.q.(pgx.Tx); alreadyTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{pool: r.pool, q: tx})
	})
}

// Scan helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAvailability(row pgx.Row) (*Availability, error) {
	var av Availability
	var weekday, startMinute, endMinute, slotMinutes int
	var effectiveDate *time.Time

	err := row.Scan(
		&av.ID,
		&av.DoctorID,
		&weekday,
		&startMinute,
		&endMinute,
		&av.IsAvailable,
		&av.ScheduleType,
		&effectiveDate,
		&av.Location,
		&av.Department,
		&av.Room,
		&slotMinutes,
		&av.MaxPatients,
		&av.CreatedAt,
		&av.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAvailabilityNotFound
		}
		return nil, err
	}

	av.Weekday = time.Weekday(weekday)
	av.Start = ClockTime(startMinute)
	av.End = ClockTime(endMinute)
	av.SlotDuration = time.Duration(slotMinutes) * time.Minute
	av.EffectiveDate = effectiveDate
	return &av, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	var availabilityID *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&availabilityID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.IsAvailable,
		&s.Location,
		&s.Department,
		&s.Room,
		&s.MaxPatients,
		&s.CurrentPatients,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.AvailabilityID = availabilityID
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var followUpTo *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.TimeSlotID,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Reason,
		&a.Priority,
		&a.Notes,
		&a.CreatedBy,
		&followUpTo,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.FollowUpTo = followUpTo
	return &a, nil
}

const availabilityColumns = `id, doctor_id, weekday, start_minute, end_minute, is_available,
	schedule_type, effective_date, location, department, room,
	slot_duration_minutes, max_patients_per_slot, created_at, updated_at`

const slotColumns = `id, doctor_id, availability_id, date, start_time, end_time, status,
	is_available, location, department, room, max_patients, current_patients,
	created_at, updated_at`

const appointmentColumns = `id, patient_id, doctor_id, time_slot_id, appointment_date,
	start_time, end_time, status, reason, priority, notes, created_by, follow_up_to,
	created_at, updated_at`

// Directory

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM doctors ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// Availabilities

func (r *PgRepository) CreateAvailability(ctx context.Context, av *Availability) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO availabilities (id, doctor_id, weekday, start_minute, end_minute, is_available,
			schedule_type, effective_date, location, department, room,
			slot_duration_minutes, max_patients_per_slot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
	`, av.ID, av.DoctorID, int(av.Weekday), av.Start.Minutes(), av.End.Minutes(), av.IsAvailable,
		av.ScheduleType, av.EffectiveDate, av.Location, av.Department, av.Room,
		int(av.SlotDuration/time.Minute), av.MaxPatients)
	if err != nil {
		return fmt.Errorf("insert availability: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateAvailability(ctx context.Context, av *Availability) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE availabilities
		SET weekday = $2,
		    start_minute = $3,
		    end_minute = $4,
		    is_available = $5,
		    schedule_type = $6,
		    effective_date = $7,
		    location = $8,
		    department = $9,
		    room = $10,
		    slot_duration_minutes = $11,
		    max_patients_per_slot = $12,
		    updated_at = now()
		WHERE id = $1
	`, av.ID, int(av.Weekday), av.Start.Minutes(), av.End.Minutes(), av.IsAvailable,
		av.ScheduleType, av.EffectiveDate, av.Location, av.Department, av.Room,
		int(av.SlotDuration/time.Minute), av.MaxPatients)
	if err != nil {
		return fmt.Errorf("update availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *PgRepository) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM availabilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAvailabilityNotFound
	}
	return nil
}

func (r *PgRepository) GetAvailabilityByID(ctx context.Context, id uuid.UUID) (*Availability, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE id = $1
	`, id)
	return scanAvailability(row)
}

func (r *PgRepository) ListAvailabilities(ctx context.Context, doctorID uuid.UUID) ([]Availability, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE doctor_id = $1
		ORDER BY weekday, start_minute
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAvailabilities(rows)
}

func (r *PgRepository) ListRegularForWeekday(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]Availability, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE doctor_id = $1
		  AND weekday = $2
		  AND schedule_type = 'regular'
		ORDER BY start_minute
	`, doctorID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAvailabilities(rows)
}

func (r *PgRepository) ListTemporaryForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Availability, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM availabilities
		WHERE doctor_id = $1
		  AND schedule_type = 'temporary'
		  AND effective_date = $2
		ORDER BY start_minute
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAvailabilities(rows)
}

func collectAvailabilities(rows pgx.Rows) ([]Availability, error) {
	var result []Availability
	for rows.Next() {
		av, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *av)
	}
	return result, rows.Err()
}

func (r *PgRepository) HasDayOff(ctx context.Context, doctorID uuid.UUID, date time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM availabilities
			WHERE doctor_id = $1
			  AND schedule_type = 'day_off'
			  AND effective_date = $2
		)
	`, doctorID, date).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Slots

func (r *PgRepository) CreateSlots(ctx context.Context, slots []TimeSlot) error {
	for _, s := range slots {
		_, err := r.q.Exec(ctx, `
			INSERT INTO time_slots (id, doctor_id, availability_id, date, start_time, end_time,
				status, is_available, location, department, room,
				max_patients, current_patients, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, now(), now())
		`, s.ID, s.DoctorID, s.AvailabilityID, s.Date, s.StartTime, s.EndTime,
			s.Status, s.IsAvailable, s.Location, s.Department, s.Room, s.MaxPatients)
		if err != nil {
			return fmt.Errorf("insert slot %s: %w", s.ID, err)
		}
	}
	return nil
}

func (r *PgRepository) SlotExists(ctx context.Context, doctorID uuid.UUID, date time.Time, start time.Time) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_slots
			WHERE doctor_id = $1 AND date = $2 AND start_time = $3
		)
	`, doctorID, date, start).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsForDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// ClaimSlot is the linearization point for concurrent bookings: a single
// conditional UPDATE either wins the capacity increment or matches no row.
func (r *PgRepository) ClaimSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE time_slots
		SET current_patients = current_patients + 1,
		    status = CASE WHEN current_patients + 1 >= max_patients THEN 'booked' ELSE status END,
		    is_available = (current_patients + 1 < max_patients),
		    updated_at = now()
		WHERE id = $1
		  AND status = 'available'
		  AND current_patients < max_patients
		RETURNING `+slotColumns+`
	`, id)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}

	// No row matched: distinguish a missing slot from one that is full,
	// booked, or cancelled.
	if _, getErr := r.GetSlotByID(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrSlotNotAvailable
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE time_slots
		SET current_patients = GREATEST(current_patients - 1, 0),
		    status = CASE WHEN status = 'booked' THEN 'available' ELSE status END,
		    is_available = (status <> 'cancelled'),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) CancelSlot(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE time_slots
		SET status = 'cancelled',
		    is_available = false,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) DeleteFutureUnbookedSlots(ctx context.Context, availabilityID uuid.UUID, from time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM time_slots
		WHERE availability_id = $1
		  AND start_time >= $2
		  AND current_patients = 0
		  AND status <> 'booked'
	`, availabilityID, from)
	if err != nil {
		return 0, fmt.Errorf("delete future unbooked slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, time_slot_id, appointment_date,
			start_time, end_time, status, reason, priority, notes, created_by, follow_up_to,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
	`, a.ID, a.PatientID, a.DoctorID, a.TimeSlotID, a.Date,
		a.StartTime, a.EndTime, a.Status, a.Reason, a.Priority, a.Notes, a.CreatedBy, a.FollowUpTo)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)
	return scanAppointment(row)
}

func (r *PgRepository) SetAppointmentNotes(ctx context.Context, id uuid.UUID, notes string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE appointments
		SET notes = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, notes)
	if err != nil {
		return fmt.Errorf("update appointment notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) FindOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('confirmed', 'checked_in')
		  AND end_time < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE time_slot_id = $1
		  AND status IN ('pending', 'confirmed', 'checked_in', 'in_progress')
		LIMIT 1
	`, slotID)
	return scanAppointment(row)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Event log

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
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

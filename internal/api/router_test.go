package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/scheduling-service/internal/config"
	"github.com/clinicore/scheduling-service/internal/scheduling"
)

type testServer struct {
	handler   http.Handler
	repo      *scheduling.MemoryRepository
	doctorID  uuid.UUID
	patientID uuid.UUID
	staffID   uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := scheduling.NewMemoryRepository()
	doctorID := uuid.New()
	patientID := uuid.New()
	repo.AddDoctor(scheduling.Doctor{ID: doctorID, Name: "Dr. Osei"})
	repo.AddPatient(scheduling.Patient{ID: patientID, Name: "Ada Byron"})

	cfg := config.Config{
		HorizonDays:  90,
		CancelCutoff: time.Hour,
		NoShowGrace:  30 * time.Minute,
	}
	locker := scheduling.NewMutexSlotLocker()

	handler := NewRouter(RouterConfig{
		Availability: scheduling.NewAvailabilityService(repo),
		Slots:        scheduling.NewSlotService(repo, nil, cfg.HorizonDays),
		Bookings:     scheduling.NewBookingService(repo, locker, nil, nil, nil, cfg),
		Env:          "test",
		Version:      "test",
	})

	return &testServer{
		handler:   handler,
		repo:      repo,
		doctorID:  doctorID,
		patientID: patientID,
		staffID:   uuid.New(),
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, principalID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if principalID != uuid.Nil {
		req.Header.Set("X-Principal-ID", principalID.String())
		req.Header.Set("X-Principal-Role", role)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

// addSlot seeds an available slot starting startIn from now.
func (ts *testServer) addSlot(startIn time.Duration, maxPatients int) scheduling.TimeSlot {
	start := time.Now().Add(startIn).Truncate(time.Minute)
	slot := scheduling.TimeSlot{
		ID:          uuid.New(),
		DoctorID:    ts.doctorID,
		Date:        scheduling.DateOnly(start),
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		Status:      scheduling.SlotAvailable,
		IsAvailable: true,
		MaxPatients: maxPatients,
	}
	ts.repo.AddSlot(slot)
	return slot
}

func TestPrincipalRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments/"+uuid.New().String(), nil, uuid.Nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments/"+uuid.New().String(), nil, uuid.New(), "superuser")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_role", resp.Error)

	// Health endpoints stay public.
	rec = ts.do(t, http.MethodGet, "/health/live", nil, uuid.Nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/metrics", nil, uuid.Nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "scheduling_")
}

func TestAvailabilityLifecycle(t *testing.T) {
	ts := newTestServer(t)
	base := "/doctors/" + ts.doctorID.String()

	create := CreateAvailabilityRequest{
		Weekday:     1,
		StartTime:   "09:00",
		EndTime:     "12:00",
		Department:  "cardiology",
		SlotMinutes: 30,
		MaxPatients: 2,
	}
	rec := ts.do(t, http.MethodPost, base+"/availability", create, ts.staffID, "staff")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[AvailabilityResponse](t, rec)
	assert.Equal(t, "09:00", created.StartTime)
	assert.Equal(t, "regular", created.ScheduleType)

	// Overlapping window answers 409 with the conflicting IDs.
	overlap := create
	overlap.StartTime = "11:00"
	overlap.EndTime = "14:00"
	rec = ts.do(t, http.MethodPost, base+"/availability", overlap, ts.staffID, "staff")
	require.Equal(t, http.StatusConflict, rec.Code)
	conflictResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "availability_overlap", conflictResp.Error)
	assert.Equal(t, []uuid.UUID{created.ID}, conflictResp.Conflicts)

	rec = ts.do(t, http.MethodGet, base+"/availability", nil, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]AvailabilityResponse](t, rec)
	assert.Len(t, listed, 1)

	// Update to a non-overlapping window.
	update := create
	update.StartTime = "13:00"
	update.EndTime = "17:00"
	rec = ts.do(t, http.MethodPut, "/availability/"+created.ID.String(), update, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[AvailabilityResponse](t, rec)
	assert.Equal(t, "13:00", updated.StartTime)

	rec = ts.do(t, http.MethodDelete, "/availability/"+created.ID.String(), nil, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/availability/"+created.ID.String(), nil, ts.staffID, "staff")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAvailabilityValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	base := "/doctors/" + ts.doctorID.String()

	rec := ts.do(t, http.MethodPost, base+"/availability", CreateAvailabilityRequest{
		Weekday:     1,
		StartTime:   "noon",
		EndTime:     "12:00",
		SlotMinutes: 30,
	}, ts.staffID, "staff")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/availability", CreateAvailabilityRequest{
		Weekday:     1,
		StartTime:   "12:00",
		EndTime:     "09:00",
		SlotMinutes: 30,
	}, ts.staffID, "staff")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_input", resp.Error)

	rec = ts.do(t, http.MethodPost, "/doctors/"+uuid.New().String()+"/availability", CreateAvailabilityRequest{
		Weekday:     1,
		StartTime:   "09:00",
		EndTime:     "12:00",
		SlotMinutes: 30,
	}, ts.staffID, "staff")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateAndListSlots(t *testing.T) {
	ts := newTestServer(t)
	base := "/doctors/" + ts.doctorID.String()

	// A window next week so generation targets a single known weekday.
	targetDate := scheduling.DateOnly(time.Now()).AddDate(0, 0, 7)
	rec := ts.do(t, http.MethodPost, base+"/availability", CreateAvailabilityRequest{
		Weekday:     int(targetDate.Weekday()),
		StartTime:   "09:00",
		EndTime:     "10:00",
		SlotMinutes: 30,
		MaxPatients: 1,
	}, ts.staffID, "staff")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	day := targetDate.Format("2006-01-02")
	rec = ts.do(t, http.MethodPost, base+"/slots/generate", GenerateSlotsRequest{
		StartDate: day,
		EndDate:   day,
	}, ts.staffID, "staff")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	generated := decode[GenerateSlotsResponse](t, rec)
	assert.Equal(t, 2, generated.Created)

	rec = ts.do(t, http.MethodGet, base+"/slots?date="+day, nil, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code)
	slots := decode[[]SlotResponse](t, rec)
	require.Len(t, slots, 2)
	assert.Equal(t, "available", slots[0].Status)

	// Strict regeneration over the same day conflicts.
	rec = ts.do(t, http.MethodPost, base+"/slots/generate", GenerateSlotsRequest{
		StartDate: day,
		EndDate:   day,
		Strict:    true,
	}, ts.staffID, "staff")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerateSlotsForDates(t *testing.T) {
	ts := newTestServer(t)
	base := "/doctors/" + ts.doctorID.String()

	day := scheduling.DateOnly(time.Now()).AddDate(0, 0, 3).Format("2006-01-02")
	req := GenerateDatesRequest{SlotMinutes: 20, MaxPatients: 2}
	req.Windows = []struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}{{Date: day, StartTime: "14:00", EndTime: "15:00"}}

	rec := ts.do(t, http.MethodPost, base+"/slots/generate-dates", req, ts.staffID, "staff")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	generated := decode[GenerateSlotsResponse](t, rec)
	assert.Equal(t, 3, generated.Created)
	for _, s := range generated.Slots {
		assert.Equal(t, 2, s.MaxPatients)
	}
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	slot := ts.addSlot(48*time.Hour, 1)

	book := BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		TimeSlotID: slot.ID.String(),
		Reason:     "annual physical",
	}
	rec := ts.do(t, http.MethodPost, "/appointments", book, ts.patientID, "patient")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, slot.ID, appt.TimeSlotID)
	assert.Equal(t, "routine", appt.Priority)

	// The slot is full; a second booking loses.
	other := uuid.New()
	ts.repo.AddPatient(scheduling.Patient{ID: other, Name: "other"})
	book.PatientID = other.String()
	rec = ts.do(t, http.MethodPost, "/appointments", book, other, "patient")
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_not_available", resp.Error)

	rec = ts.do(t, http.MethodGet, "/appointments/"+appt.ID.String(), nil, ts.patientID, "patient")
	require.Equal(t, http.StatusOK, rec.Code)

	// Walk the operational path over the transition endpoints.
	for _, step := range []string{"confirm", "check-in", "start", "complete"} {
		rec = ts.do(t, http.MethodPost, fmt.Sprintf("/appointments/%s/%s", appt.ID, step), nil, ts.staffID, "staff")
		require.Equal(t, http.StatusOK, rec.Code, "step %s: %s", step, rec.Body.String())
	}

	final := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "completed", final.Status)

	// Completed appointments cannot be confirmed again.
	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", nil, ts.staffID, "staff")
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp = decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_status_transition", resp.Error)

	rec = ts.do(t, http.MethodGet, "/patients/"+ts.patientID.String()+"/appointments", nil, ts.patientID, "patient")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]AppointmentResponse](t, rec)
	assert.Len(t, history, 1)
}

func TestBookingRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	slot := ts.addSlot(48*time.Hour, 1)

	rec := ts.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  "not-a-uuid",
		TimeSlotID: slot.ID.String(),
	}, ts.patientID, "patient")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  uuid.New().String(),
		TimeSlotID: slot.ID.String(),
	}, ts.patientID, "patient")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "patient_not_found", resp.Error)

	rec = ts.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		TimeSlotID: uuid.New().String(),
	}, ts.patientID, "patient")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelAppointmentEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	// The fixture cutoff is one hour; this slot is inside it.
	slotSoon := ts.addSlot(30*time.Minute, 1)
	rec := ts.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		TimeSlotID: slotSoon.ID.String(),
	}, ts.patientID, "patient")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil, ts.patientID, "patient")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "cancellation_window", resp.Error)

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel",
		CancelAppointmentRequest{Notes: "clinic closure"}, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "clinic closure", cancelled.Notes)

	got, err := ts.repo.GetSlotByID(ctx, slotSoon.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentPatients)
}

func TestRescheduleAppointmentEndpoint(t *testing.T) {
	ts := newTestServer(t)
	oldSlot := ts.addSlot(48*time.Hour, 1)
	newSlot := ts.addSlot(72*time.Hour, 1)

	rec := ts.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:  ts.patientID.String(),
		TimeSlotID: oldSlot.ID.String(),
	}, ts.patientID, "patient")
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decode[AppointmentResponse](t, rec)

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule",
		RescheduleAppointmentRequest{NewTimeSlotID: newSlot.ID.String()}, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	replacement := decode[AppointmentResponse](t, rec)
	assert.Equal(t, newSlot.ID, replacement.TimeSlotID)
	require.NotNil(t, replacement.FollowUpTo)
	assert.Equal(t, appt.ID, *replacement.FollowUpTo)
}

func TestCancelSlotEndpoint(t *testing.T) {
	ts := newTestServer(t)
	slot := ts.addSlot(48*time.Hour, 1)

	rec := ts.do(t, http.MethodPost, "/slots/"+slot.ID.String()+"/cancel", nil, ts.patientID, "patient")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/slots/"+slot.ID.String()+"/cancel", nil, ts.staffID, "staff")
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[SlotResponse](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
}

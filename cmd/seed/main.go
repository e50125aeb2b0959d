package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/scheduling-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.RunMigrations(dsn); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAvailabilities(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed availabilities: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		_, err := pool.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, "Dr. "+gofakeit.Name(), specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		_, err := pool.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.Name(), email)
		if err != nil {
			return err
		}
	}
	return nil
}

// seedAvailabilities gives every doctor a plausible Monday-to-Friday pattern:
// a morning window and an afternoon window with 20 or 30 minute slots.
func seedAvailabilities(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding availabilities for %d doctors", len(doctorIDs))

	durations := []int{20, 30}
	departments := []string{"Outpatient", "Surgery", "Diagnostics", "Pediatrics"}

	for _, doctorID := range doctorIDs {
		duration := durations[gofakeit.Number(0, len(durations)-1)]
		department := departments[gofakeit.Number(0, len(departments)-1)]
		room := gofakeit.Numerify("Room ###")

		for weekday := 1; weekday <= 5; weekday++ {
			windows := [][2]int{
				{9 * 60, 12 * 60},
				{13 * 60, 17 * 60},
			}
			for _, win := range windows {
				_, err := pool.Exec(ctx, `
					INSERT INTO availabilities (id, doctor_id, weekday, start_minute, end_minute,
						is_available, schedule_type, location, department, room,
						slot_duration_minutes, max_patients_per_slot, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, true, 'regular', $6, $7, $8, $9, 1, now(), now())
				`, uuid.New(), doctorID, weekday, win[0], win[1],
					gofakeit.City()+" Clinic", department, room, duration)
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

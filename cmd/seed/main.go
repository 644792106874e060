package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmind/appointment-scheduling/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	professionalIDs, err := seedProfessionals(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed professionals: %v", err)
	}
	studentIDs, err := seedStudents(context.Background(), pool, 2000)
	if err != nil {
		log.Fatalf("seed students: %v", err)
	}
	if err := seedReports(context.Background(), pool, studentIDs, 150); err != nil {
		log.Fatalf("seed reports: %v", err)
	}

	log.Printf("seed complete: %d professionals, %d students", len(professionalIDs), len(studentIDs))
}

func seedProfessionals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d professionals", count)

	specialties := []string{
		"Clinical Psychology",
		"Counseling",
		"Psychiatry",
		"Social Work",
		"Behavioral Therapy",
		"Crisis Intervention",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO professionals (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("professionals seeded")
	return ids, nil
}

func seedStudents(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d students", count)

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO students (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("students seeded: %d/%d", end, count)
	}

	log.Println("students seeded")
	return ids, nil
}

func seedReports(ctx context.Context, pool *pgxpool.Pool, studentIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d reports", count)

	types := []string{"stress", "anxiety", "depression", "academic", "other"}
	urgencies := []string{"low", "medium", "high"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		studentID := studentIDs[gofakeit.Number(0, len(studentIDs)-1)]
		reportType := types[gofakeit.Number(0, len(types)-1)]
		urgency := urgencies[gofakeit.Number(0, len(urgencies)-1)]
		description := gofakeit.Sentence(12)

		_, err := tx.Exec(ctx, `
			INSERT INTO reports (id, student_id, type, description, status, urgency, submitted_at)
			VALUES ($1, $2, $3, $4, 'pending', $5, now())
		`, id, studentID, reportType, description, urgency)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("reports seeded")
	return nil
}

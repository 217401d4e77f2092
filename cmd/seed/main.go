package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vetdesk/clinic-scheduling/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	seedCtx := context.Background()

	hospitalIDs, err := seedHospitals(seedCtx, pool, 5)
	if err != nil {
		log.Fatalf("seed hospitals: %v", err)
	}
	if err := seedStaff(seedCtx, pool, hospitalIDs); err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	guardianIDs, err := seedGuardians(seedCtx, pool, 2000)
	if err != nil {
		log.Fatalf("seed guardians: %v", err)
	}
	if err := seedAnimals(seedCtx, pool, guardianIDs, 3000); err != nil {
		log.Fatalf("seed animals: %v", err)
	}
	if err := seedSchedules(seedCtx, pool, hospitalIDs); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}

	log.Println("seed complete")
}

func seedHospitals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d hospitals", count)

	ids := make([]uuid.UUID, 0, count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.City() + " Animal Hospital"

		_, err := tx.Exec(ctx, `
			INSERT INTO hospitals (id, name, address, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, gofakeit.Address().Address, gofakeit.Phone())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("hospitals seeded")
	return ids, nil
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool, hospitalIDs []uuid.UUID) error {
	log.Printf("seeding staff for %d hospitals", len(hospitalIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, hospitalID := range hospitalIDs {
		roles := []string{"admin", "staff", "staff", "vet", "vet", "vet"}
		for _, role := range roles {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, hospital_id, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email(), role, hospitalID)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("staff seeded")
	return nil
}

func seedGuardians(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d guardians", count)

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

			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, name, email, role, created_at, updated_at)
				VALUES ($1, $2, $3, 'guardian', now(), now())
			`, id, gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("guardians seeded: %d/%d", end, count)
	}

	return ids, nil
}

func seedAnimals(ctx context.Context, pool *pgxpool.Pool, guardianIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d animals", count)

	const batchSize = 500
	species := []string{"dog", "cat", "rabbit", "bird", "reptile", "hamster"}

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			sp := species[gofakeit.Number(0, len(species)-1)]
			guardianID := guardianIDs[gofakeit.Number(0, len(guardianIDs)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO animals (id, name, species, breed, birth_date, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, id, gofakeit.PetName(), sp, gofakeit.Word(),
				gofakeit.DateRange(time.Now().AddDate(-15, 0, 0), time.Now()))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO animal_guardians (animal_id, guardian_id)
				VALUES ($1, $2)
			`, id, guardianID)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("animals seeded: %d/%d", end, count)
	}

	log.Println("animals seeded")
	return nil
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, hospitalIDs []uuid.UUID) error {
	log.Printf("seeding schedules for %d hospitals", len(hospitalIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, hospitalID := range hospitalIDs {
		// Mon-Sat: a morning block and an afternoon block.
		for day := 1; day <= 6; day++ {
			blocks := [][2]int{
				{9 * 60, 12 * 60},
				{14 * 60, 18 * 60},
			}
			for _, b := range blocks {
				_, err := tx.Exec(ctx, `
					INSERT INTO time_templates
						(id, hospital_id, day_of_week, start_minute, end_minute,
						 slot_duration_minutes, max_concurrent, is_active, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, now(), now())
				`, uuid.New(), hospitalID, day, b[0], b[1], 30, gofakeit.Number(1, 3))
				if err != nil {
					return err
				}
			}
		}

		// Every hospital closes for New Year's Day.
		_, err := tx.Exec(ctx, `
			INSERT INTO closures (id, hospital_id, closure_date, reason, is_recurring, created_at)
			VALUES ($1, $2, '2026-01-01', 'New Year''s Day', TRUE, now())
		`, uuid.New(), hospitalID)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("schedules seeded")
	return nil
}

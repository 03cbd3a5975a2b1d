package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/logging"
)

const (
	employeeCount = 40
	adminCount    = 3
	customerCount = 5000
	tokenTTL      = 24 * time.Hour
)

var (
	consultationTypes = []string{
		"Tax advisory",
		"Bookkeeping",
		"Payroll",
		"Company formation",
		"Labor law",
		"Financial audit",
	}
	modalities = []string{
		"In person",
		"Video call",
		"Phone call",
	}
	specialties = []string{
		"Corporate tax",
		"Personal income tax",
		"Accounting",
		"Employment law",
		"Commercial law",
		"Audit and assurance",
	}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New("seed", cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))
	seedCtx := context.Background()

	for table, names := range map[string][]string{
		"consultation_types": consultationTypes,
		"modalities":         modalities,
		"specialties":        specialties,
	} {
		if err := seedLabels(seedCtx, pool, table, names); err != nil {
			logger.Fatal("seed labels", zap.String("table", table), zap.Error(err))
		}
		logger.Info("labels seeded", zap.String("table", table), zap.Int("count", len(names)))
	}

	staff, err := seedStaff(seedCtx, pool, faker, employeeCount, adminCount)
	if err != nil {
		logger.Fatal("seed staff", zap.Error(err))
	}
	logger.Info("staff seeded", zap.Int("employees", employeeCount), zap.Int("admins", adminCount))

	customers, err := seedCustomers(seedCtx, pool, faker, customerCount, logger)
	if err != nil {
		logger.Fatal("seed customers", zap.Error(err))
	}

	// Sample tokens for poking the API by hand.
	samples := map[string]uuid.UUID{
		auth.RoleNameAdmin:    staff[auth.RoleNameAdmin][0],
		auth.RoleNameEmployee: staff[auth.RoleNameEmployee][0],
		auth.RoleNameUser:     customers[0],
	}
	for role, id := range samples {
		token, err := auth.IssueToken(cfg.JWTSecret, cfg.JWTAudience, id, tokenTTL)
		if err != nil {
			logger.Fatal("issue sample token", zap.Error(err))
		}
		logger.Info("sample token",
			zap.String("role", role),
			zap.String("profile_id", id.String()),
			zap.String("token", token),
		)
	}

	logger.Info("seed complete")
}

func seedLabels(ctx context.Context, pool *pgxpool.Pool, table string, names []string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for _, name := range names {
			_, err := tx.Exec(ctx, fmt.Sprintf(`
				INSERT INTO %s (id, name) VALUES ($1, $2)
				ON CONFLICT (name) DO NOTHING
			`, pgx.Identifier{table}.Sanitize()), uuid.New(), name)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func roleID(ctx context.Context, q pgx.Tx, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM roles WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("role %q: %w", name, err)
	}
	return id, nil
}

// seedStaff creates employee and admin profiles, each tied to a specialty.
func seedStaff(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, employees, admins int) (map[string][]uuid.UUID, error) {
	out := map[string][]uuid.UUID{}

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM specialties`)
		if err != nil {
			return err
		}
		specialtyIDs, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return err
		}
		if len(specialtyIDs) == 0 {
			return fmt.Errorf("no specialties seeded")
		}

		for role, count := range map[string]int{auth.RoleNameEmployee: employees, auth.RoleNameAdmin: admins} {
			rid, err := roleID(ctx, tx, role)
			if err != nil {
				return err
			}
			for i := 0; i < count; i++ {
				id := uuid.New()
				_, err := tx.Exec(ctx, `
					INSERT INTO profiles (id, email, full_name, role_id, specialty_id, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, now(), now())
				`, id, faker.Email(), faker.Name(), rid, specialtyIDs[faker.Number(0, len(specialtyIDs)-1)])
				if err != nil {
					return err
				}
				out[role] = append(out[role], id)
			}
		}
		return nil
	})
	return out, err
}

func seedCustomers(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger *zap.Logger) ([]uuid.UUID, error) {
	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			rid, err := roleID(ctx, tx, auth.RoleNameUser)
			if err != nil {
				return err
			}
			for i := offset; i < end; i++ {
				id := uuid.New()
				_, err := tx.Exec(ctx, `
					INSERT INTO profiles (id, email, full_name, role_id, created_at, updated_at)
					VALUES ($1, $2, $3, $4, now(), now())
				`, id, faker.Email(), faker.Name(), rid)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		logger.Debug("customers seeded", zap.Int("done", end), zap.Int("total", count))
	}

	logger.Info("customers seeded", zap.Int("count", count))
	return ids, nil
}

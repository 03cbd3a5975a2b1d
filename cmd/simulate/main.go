package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/consultation-scheduling/internal/auth"
	"github.com/hackgods/consultation-scheduling/internal/config"
	"github.com/hackgods/consultation-scheduling/internal/db"
	"github.com/hackgods/consultation-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	BookingRatio      float64
	StaffBookingRatio float64
	ApproveRatio      float64
	ReadRatio         float64
	CustomerLimit     int
	EmployeeLimit     int
	Days              int
	PostgresDSN       string
	JWTSecret         string
	JWTAudience       string
	EnforceApprovals  bool
}

type simAppointment struct {
	ID         uuid.UUID
	EmployeeID uuid.UUID
}

type DataPool struct {
	Customers   []uuid.UUID
	Employees   []uuid.UUID
	TypeIDs     []uuid.UUID
	ModalityIDs []uuid.UUID

	mu           sync.RWMutex
	appointments []simAppointment // pending appointments created by customers
	tokens       map[uuid.UUID]string
}

func (dp *DataPool) AddPending(a simAppointment) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, a)
}

func (dp *DataPool) TakeRandomPending(rng *rand.Rand) (simAppointment, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return simAppointment{}, false
	}
	idx := rng.Intn(len(dp.appointments))
	a := dp.appointments[idx]
	dp.appointments[idx] = dp.appointments[len(dp.appointments)-1]
	dp.appointments = dp.appointments[:len(dp.appointments)-1]
	return a, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, lo, hi, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	CustomerBooking OperationMetrics
	StaffBooking    OperationMetrics
	Approve         OperationMetrics
	ListOwn         OperationMetrics
	ListByEmployee  OperationMetrics
	Vocabulary      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *zap.Logger
	metrics Metrics
	base    time.Time
}

func main() {
	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New("simulate", false)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("staff_booking", cfg.StaffBookingRatio),
		zap.Float64("approve", cfg.ApproveRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	// Load data from Postgres
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}

	logger.Info("data loaded",
		zap.Int("customers", len(dataPool.Customers)),
		zap.Int("employees", len(dataPool.Employees)),
	)

	// Bookings land on a small grid starting tomorrow so workers collide often.
	tomorrow := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		base:   tomorrow,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := countApprovedOverlaps(context.Background(), pgPool, tomorrow, tomorrow.AddDate(0, 0, cfg.Days))
	if err != nil {
		logger.Fatal("verify schedules", zap.Error(err))
	}
	sim.PrintVerification(overlaps)
	if overlaps > 0 && (cfg.EnforceApprovals || cfg.ApproveRatio == 0) {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		BookingRatio:      getFloat("SIM_BOOKING_RATIO", 0.35),
		StaffBookingRatio: getFloat("SIM_STAFF_BOOKING_RATIO", 0.25),
		ApproveRatio:      getFloat("SIM_APPROVE_RATIO", 0.15),
		ReadRatio:         getFloat("SIM_READ_RATIO", 0.25),
		CustomerLimit:     getInt("SIM_CUSTOMER_LIMIT", 2000),
		EmployeeLimit:     getInt("SIM_EMPLOYEE_LIMIT", 5),
		Days:              getInt("SIM_DAYS", 2),
		PostgresDSN:       baseCfg.PostgresDSN,
		JWTSecret:         baseCfg.JWTSecret,
		JWTAudience:       baseCfg.JWTAudience,
		EnforceApprovals:  baseCfg.EnforceApprovalConflicts,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.StaffBookingRatio + cfg.ApproveRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StaffBookingRatio /= total
		cfg.ApproveRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{tokens: map[uuid.UUID]string{}}

	queries := []struct {
		name string
		sql  string
		args []any
		dest *[]uuid.UUID
	}{
		{"customers", `
			SELECT p.id FROM profiles p JOIN roles r ON r.id = p.role_id
			WHERE r.name = $1 LIMIT $2`, []any{auth.RoleNameUser, cfg.CustomerLimit}, &dataPool.Customers},
		{"employees", `
			SELECT p.id FROM profiles p JOIN roles r ON r.id = p.role_id
			WHERE r.name = $1 ORDER BY p.id LIMIT $2`, []any{auth.RoleNameEmployee, cfg.EmployeeLimit}, &dataPool.Employees},
		{"consultation types", `SELECT id FROM consultation_types`, nil, &dataPool.TypeIDs},
		{"modalities", `SELECT id FROM modalities`, nil, &dataPool.ModalityIDs},
	}

	for _, q := range queries {
		rows, err := pool.Query(ctx, q.sql, q.args...)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", q.name, err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", q.name, err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("no %s loaded, run the seeder first", q.name)
		}
		*q.dest = ids
	}

	return dataPool, nil
}

func (s *Simulator) token(id uuid.UUID) string {
	s.pool.mu.RLock()
	tok, ok := s.pool.tokens[id]
	s.pool.mu.RUnlock()
	if ok {
		return tok
	}

	tok, err := auth.IssueToken(s.config.JWTSecret, s.config.JWTAudience, id, time.Hour)
	if err != nil {
		s.logger.Fatal("issue token", zap.Error(err))
	}

	s.pool.mu.Lock()
	s.pool.tokens[id] = tok
	s.pool.mu.Unlock()
	return tok
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doCustomerBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StaffBookingRatio:
				s.doStaffBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.StaffBookingRatio+s.config.ApproveRatio:
				s.doApprove(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doListOwn(ctx, rng)
				case 1:
					s.doListByEmployee(ctx, rng)
				case 2:
					s.doVocabulary(ctx, rng)
				}
			}
		}
	}
}

// randomSlot picks a start on a 30 minute grid between 09:00 and 17:00 UTC.
func (s *Simulator) randomSlot(rng *rand.Rand) (time.Time, int) {
	day := rng.Intn(s.config.Days)
	step := rng.Intn(16)
	start := s.base.AddDate(0, 0, day).Add(9*time.Hour + time.Duration(step)*30*time.Minute)
	durations := []int{30, 60, 90}
	return start, durations[rng.Intn(len(durations))]
}

func (s *Simulator) bookingBody(rng *rand.Rand, employeeID, customerID uuid.UUID) map[string]any {
	start, minutes := s.randomSlot(rng)
	body := map[string]any{
		"employeeId":         employeeID.String(),
		"consultationTypeId": s.pool.TypeIDs[rng.Intn(len(s.pool.TypeIDs))].String(),
		"modalityId":         s.pool.ModalityIDs[rng.Intn(len(s.pool.ModalityIDs))].String(),
		"startTime":          start.Format(time.RFC3339),
		"durationMinutes":    minutes,
		"description":        "load simulation",
	}
	if customerID != uuid.Nil {
		body["customerId"] = customerID.String()
	}
	return body
}

func (s *Simulator) doCustomerBooking(ctx context.Context, rng *rand.Rand) {
	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	employeeID := s.pool.Employees[rng.Intn(len(s.pool.Employees))]

	status, body, latency, err := s.call(ctx, http.MethodPost, "/appointments", s.token(customerID), s.bookingBody(rng, employeeID, uuid.Nil))
	success := err == nil && status == http.StatusCreated
	if success {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &created) == nil && created.ID != uuid.Nil {
			s.pool.AddPending(simAppointment{ID: created.ID, EmployeeID: employeeID})
		}
	}
	s.metrics.CustomerBooking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doStaffBooking(ctx context.Context, rng *rand.Rand) {
	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	employeeID := s.pool.Employees[rng.Intn(len(s.pool.Employees))]

	status, _, latency, err := s.call(ctx, http.MethodPost, "/appointments", s.token(employeeID), s.bookingBody(rng, employeeID, customerID))
	s.metrics.StaffBooking.Record(latency, err == nil && status == http.StatusCreated, status == http.StatusConflict)
}

func (s *Simulator) doApprove(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.TakeRandomPending(rng)
	if !ok {
		return
	}

	req := map[string]string{"id": appt.ID.String(), "statusName": "approved"}
	status, _, latency, err := s.call(ctx, http.MethodPut, "/appointments", s.token(appt.EmployeeID), req)
	s.metrics.Approve.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doListOwn(ctx context.Context, rng *rand.Rand) {
	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	status, _, latency, err := s.call(ctx, http.MethodGet, "/appointments", s.token(customerID), nil)
	s.metrics.ListOwn.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doListByEmployee(ctx context.Context, rng *rand.Rand) {
	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	employeeID := s.pool.Employees[rng.Intn(len(s.pool.Employees))]
	path := "/appointments?employeeId=" + employeeID.String()
	status, _, latency, err := s.call(ctx, http.MethodGet, path, s.token(customerID), nil)
	s.metrics.ListByEmployee.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) doVocabulary(ctx context.Context, rng *rand.Rand) {
	customerID := s.pool.Customers[rng.Intn(len(s.pool.Customers))]
	path := "/consultation-types"
	if rng.Intn(2) == 1 {
		path = "/modalities"
	}
	status, _, latency, err := s.call(ctx, http.MethodGet, path, s.token(customerID), nil)
	s.metrics.Vocabulary.Record(latency, err == nil && status == http.StatusOK, false)
}

func (s *Simulator) call(ctx context.Context, method, path, token string, payload any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, body, latency, err
}

// countApprovedOverlaps counts pairs of approved appointments for the same
// employee whose intervals intersect inside the simulated window.
func countApprovedOverlaps(ctx context.Context, pool *pgxpool.Pool, from, to time.Time) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON b.employee_id = a.employee_id
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
		JOIN appointment_statuses sa ON sa.id = a.status_id
		JOIN appointment_statuses sb ON sb.id = b.status_id
		WHERE sa.name = 'approved' AND sb.name = 'approved'
		  AND a.start_time >= $1 AND a.start_time < $2
	`, from, to).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Employees under load: %d over %d day(s)\n", len(s.pool.Employees), s.config.Days)
	fmt.Println()

	printOperationReport("Customer booking", &s.metrics.CustomerBooking)
	printOperationReport("Staff booking", &s.metrics.StaffBooking)
	printOperationReport("Approve", &s.metrics.Approve)
	printOperationReport("List own", &s.metrics.ListOwn)
	printOperationReport("List by employee", &s.metrics.ListByEmployee)
	printOperationReport("Vocabulary", &s.metrics.Vocabulary)
}

func (s *Simulator) PrintVerification(overlaps int) {
	fmt.Println(repeat("-", 80))
	switch {
	case overlaps == 0:
		fmt.Println("Schedule check: no overlapping approved appointments")
	case s.config.EnforceApprovals || s.config.ApproveRatio == 0:
		fmt.Printf("Schedule check: FAILED, %d overlapping approved pairs\n", overlaps)
	default:
		fmt.Printf("Schedule check: %d overlapping approved pairs from approvals (ENFORCE_APPROVAL_CONFLICTS is off)\n", overlaps)
	}
	fmt.Println(repeat("-", 80))
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}

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
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmind/appointment-scheduling/internal/config"
	"github.com/campusmind/appointment-scheduling/internal/db"
	"github.com/campusmind/appointment-scheduling/internal/timeslot"
)

// The simulator hammers one professional's schedule for one day with
// concurrent booking requests. Every worker races for the same small slot
// catalog, so most requests should come back as conflicts; the final
// verification proves the service never committed two overlapping rows.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	StudentLimit int
	PostgresDSN  string
}

type Metrics struct {
	Total    int64
	Created  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.Created, 1)
	case status == http.StatusConflict || status == http.StatusBadRequest:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *Metrics) Percentile(p int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, int32(cfg.Workers))
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	students, err := loadIDs(ctx, pgPool, `SELECT id FROM students LIMIT $1`, cfg.StudentLimit)
	if err != nil {
		log.Fatalf("load students: %v", err)
	}
	professionals, err := loadIDs(ctx, pgPool, `SELECT id FROM professionals LIMIT $1`, 1)
	if err != nil {
		log.Fatalf("load professionals: %v", err)
	}
	if len(students) == 0 || len(professionals) == 0 {
		log.Fatal("no seed data found, run cmd/seed first")
	}

	professionalID := professionals[0]
	date := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	catalog := timeslot.DailyCatalog()

	log.Printf("contending for professional=%s date=%s slots=%d workers=%d duration=%s",
		professionalID, date, len(catalog), cfg.Workers, cfg.Duration)

	client := &http.Client{Timeout: 10 * time.Second}
	metrics := &Metrics{}

	runCtx, stopWorkers := context.WithTimeout(context.Background(), cfg.Duration)
	defer stopWorkers()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for runCtx.Err() == nil {
				student := students[rng.Intn(len(students))]
				slot := catalog[rng.Intn(len(catalog))]
				attemptBooking(runCtx, client, cfg.APIBaseURL, metrics, student, professionalID, date, slot)
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	log.Printf("results: total=%d created=%d conflict=%d error=%d p50=%s p95=%s",
		metrics.Total, metrics.Created, metrics.Conflict, metrics.Error,
		metrics.Percentile(50), metrics.Percentile(95))

	overlaps, err := countOverlaps(ctx, pgPool, professionalID, date)
	if err != nil {
		log.Fatalf("verify overlaps: %v", err)
	}
	if overlaps > 0 {
		log.Fatalf("FAIL: found %d overlapping committed appointments", overlaps)
	}
	log.Println("OK: no overlapping committed appointments")
}

func attemptBooking(ctx context.Context, client *http.Client, baseURL string, metrics *Metrics, studentID, professionalID uuid.UUID, date string, slot timeslot.Slot) {
	body, _ := json.Marshal(map[string]string{
		"student_id":      studentID.String(),
		"professional_id": professionalID.String(),
		"date":            date,
		"start":           slot.Start.String(),
		"end":             slot.End.String(),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			metrics.Record(time.Since(start), 0)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	metrics.Record(time.Since(start), resp.StatusCode)
}

// countOverlaps finds pairs of committed appointments on the same schedule
// whose half-open intervals intersect. The lock makes this always zero.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool, professionalID uuid.UUID, date string) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.professional_id = b.professional_id
		 AND a.appointment_date = b.appointment_date
		 AND a.id < b.id
		 AND a.slot_start < b.slot_end
		 AND a.slot_end > b.slot_start
		WHERE a.professional_id = $1
		  AND a.appointment_date = $2
		  AND a.status IN ('pending', 'approved')
		  AND b.status IN ('pending', 'approved')
	`, professionalID, date).Scan(&count)
	return count, err
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
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

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 15*time.Second),
		Workers:      getInt("SIM_WORKERS", 20),
		StudentLimit: getInt("SIM_STUDENT_LIMIT", 500),
		PostgresDSN:  baseCfg.PostgresDSN,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

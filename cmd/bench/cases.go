// README: Smoke cases for the booking and ledger flow; HTTP, DB, Redis GEO, race and load checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"spotledger/internal/infra"
	"spotledger/internal/modules/account"
	"spotledger/migrations"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"

	spaceGeoKey = "spotledger:spaces:geo"
	tokenTTL    = time.Hour
)

var expectedTables = []string{"accounts", "parking_spaces", "bookings", "booking_state_events", "schema_migrations"}

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	ownerToken  string
	renterToken string
	spaceID     string
	bookingID   string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = infra.NewRedis(r.cfg.RedisAddr)
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigrations},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "Auth: issue bench tokens", Run: issueTokens},
		{Name: "Auth: missing token -> 401", Run: expectStatus(http.MethodGet, "/api/spaces/search", "", nil, http.StatusUnauthorized)},
		{Name: "Auth: renter on owner route -> 403", Run: expectStatus(http.MethodGet, "/api/owner/stats", "renter", nil, http.StatusForbidden)},
		{Name: "Owner: create space", Run: createSpace},
		{Name: "Redis: space in GEO index", Run: checkGeoMember},
		{Name: "Renter: search near space", Run: searchNearby},
		{Name: "Renter: book space", Run: createBooking},
		{Name: "Renter: book with end before start -> 400", Run: badInterval},
		{Name: "Renter: concurrent cancel yields one refund", Run: concurrentCancel},
		{Name: "Owner: stats after cancel", Run: ownerStats},
		{Name: "Perf: search load", Run: searchLoad},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func applyMigrations(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	if err := migrations.Apply(ctx, r.db); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	for _, t := range expectedTables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	status, _, latency, err := r.do(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	return Result{Status: statusPass, Latency: latency}
}

// issueTokens signs fresh owner and renter identities so each run starts
// from empty ledgers.
func issueTokens(_ context.Context, r *Runner) Result {
	if r.cfg.JWTSecret == "" {
		return Result{Status: statusFail, Note: "jwt secret not configured"}
	}
	run := uuid.NewString()[:8]
	var err error
	if r.ownerToken, err = infra.SignJWT(r.cfg.JWTSecret, "bench-owner-"+run, string(account.RoleOwner), tokenTTL); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if r.renterToken, err = infra.SignJWT(r.cfg.JWTSecret, "bench-renter-"+run, string(account.RoleRenter), tokenTTL); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass, Note: "run=" + run}
}

func expectStatus(method, path, as string, body any, want int) func(context.Context, *Runner) Result {
	return func(ctx context.Context, r *Runner) Result {
		status, _, latency, err := r.do(ctx, method, path, r.token(as), body)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if status != want {
			return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
		}
		return Result{Status: statusPass, Latency: latency}
	}
}

func createSpace(ctx context.Context, r *Runner) Result {
	status, body, latency, err := r.do(ctx, http.MethodPost, "/api/owner/spaces", r.ownerToken, map[string]any{
		"title":          "Bench Lot",
		"address":        "12 MG Road, Bengaluru",
		"vehicle_type":   "both",
		"total_slots":    3,
		"price_per_hour": 40,
		"latitude":       12.9756,
		"longitude":      77.6050,
		"available_from": "08:00",
		"available_to":   "20:00",
	})
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var out struct {
		Space struct {
			ID string `json:"id"`
		} `json:"space"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Space.ID == "" {
		return Result{Status: statusFail, Latency: latency, Note: "response has no space id"}
	}
	r.spaceID = out.Space.ID
	return Result{Status: statusPass, Latency: latency, Note: "space=" + r.spaceID}
}

func checkGeoMember(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	if r.spaceID == "" {
		return Result{Status: statusSkip, Note: "no space created"}
	}
	pos, err := r.redis.GeoPos(ctx, spaceGeoKey, r.spaceID).Result()
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if len(pos) == 0 || pos[0] == nil {
		return Result{Status: statusFail, Note: "space missing from " + spaceGeoKey}
	}
	return Result{Status: statusPass}
}

func searchNearby(ctx context.Context, r *Runner) Result {
	if r.spaceID == "" {
		return Result{Status: statusSkip, Note: "no space created"}
	}
	status, body, latency, err := r.do(ctx, http.MethodGet, "/api/spaces/search?lat=12.9716&lng=77.5946&within_km=5", r.renterToken, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var out struct {
		Spaces []struct {
			ID string `json:"id"`
		} `json:"spaces"`
		NearbyCount int `json:"nearby_count"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{Status: statusFail, Latency: latency, Note: err.Error()}
	}
	for _, s := range out.Spaces {
		if s.ID == r.spaceID {
			return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("nearby=%d", out.NearbyCount)}
		}
	}
	return Result{Status: statusFail, Latency: latency, Note: "created space not in results"}
}

func createBooking(ctx context.Context, r *Runner) Result {
	if r.spaceID == "" {
		return Result{Status: statusSkip, Note: "no space created"}
	}
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	status, body, latency, err := r.do(ctx, http.MethodPost, "/api/bookings", r.renterToken, map[string]any{
		"space_id":   r.spaceID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(150 * time.Minute).Format(time.RFC3339),
	})
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusCreated {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var out struct {
		Booking struct {
			ID          string  `json:"id"`
			TotalAmount float64 `json:"total_amount"`
		} `json:"booking"`
		BilledHours int `json:"billed_hours"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Booking.ID == "" {
		return Result{Status: statusFail, Latency: latency, Note: "response has no booking id"}
	}
	r.bookingID = out.Booking.ID
	if out.BilledHours != 3 {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("billed_hours=%d want=3", out.BilledHours)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("booking=%s total=%.2f", r.bookingID, out.Booking.TotalAmount)}
}

func badInterval(ctx context.Context, r *Runner) Result {
	if r.spaceID == "" {
		return Result{Status: statusSkip, Note: "no space created"}
	}
	start := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	return expectStatus(http.MethodPost, "/api/bookings", "renter", map[string]any{
		"space_id":   r.spaceID,
		"start_time": start.Format(time.RFC3339),
		"end_time":   start.Add(-time.Hour).Format(time.RFC3339),
	}, http.StatusBadRequest)(ctx, r)
}

// concurrentCancel fires the same cancel from many goroutines; exactly one
// may succeed and the rest must see a conflict.
func concurrentCancel(ctx context.Context, r *Runner) Result {
	if r.bookingID == "" {
		return Result{Status: statusSkip, Note: "no booking created"}
	}
	path := "/api/bookings/" + r.bookingID + "/cancel"

	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		succ, conflict int
		other          int
	)
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, _, err := r.do(ctx, http.MethodPost, path, r.renterToken, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other++
			case status == http.StatusOK:
				succ++
			case status == http.StatusConflict:
				conflict++
			default:
				other++
			}
		}()
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d other=%d", succ, conflict, other)
	if succ != 1 || other > 0 {
		return Result{Status: statusFail, Latency: time.Since(start), Note: note}
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: note}
}

func ownerStats(ctx context.Context, r *Runner) Result {
	status, body, latency, err := r.do(ctx, http.MethodGet, "/api/owner/stats", r.ownerToken, nil)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if status != http.StatusOK {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
	}
	var out struct {
		Stats struct {
			TotalEarnings float64 `json:"total_earnings"`
			TotalBookings int     `json:"total_bookings"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{Status: statusFail, Latency: latency, Note: err.Error()}
	}
	// A full refund reverses the whole owner share.
	if out.Stats.TotalEarnings != 0 {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("total_earnings=%.2f want=0", out.Stats.TotalEarnings)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("bookings=%d", out.Stats.TotalBookings)}
}

func searchLoad(ctx context.Context, r *Runner) Result {
	if r.renterToken == "" {
		return Result{Status: statusSkip, Note: "no renter token"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var (
		wg              sync.WaitGroup
		mu              sync.Mutex
		count, errCount int64
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.do(ctx, http.MethodGet, "/api/spaces/search?lat=12.9716&lng=77.5946", r.renterToken, nil)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func (r *Runner) token(as string) string {
	switch as {
	case "owner":
		return r.ownerToken
	case "renter":
		return r.renterToken
	}
	return ""
}

func (r *Runner) do(ctx context.Context, method, path, token string, body any) (int, []byte, time.Duration, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, rd)
	if err != nil {
		return 0, nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, time.Since(start), err
}

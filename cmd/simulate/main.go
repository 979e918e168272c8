package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vet-chat-scheduler/internal/config"
	"github.com/hackgods/vet-chat-scheduler/internal/db"
	"github.com/hackgods/vet-chat-scheduler/internal/directory"
	"github.com/hackgods/vet-chat-scheduler/internal/logging"
)

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	IdentifiedRate float64
	ConfirmRate    float64
	ClientLimit    int
	PostgresDSN    string
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
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
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[min2(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min2(len(latencies)*95/100, len(latencies)-1)]
	return avg, min, max, p50, p95
}

type Metrics struct {
	Start        OperationMetrics
	Action       OperationMetrics
	Conversation OperationMetrics
	Booked       int64
	Stalled      int64
}

// The subset of the session payload the simulator needs to pick its next move.
type option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type message struct {
	Sender    string   `json:"sender"`
	Options   []option `json:"options"`
	TimeSlots []string `json:"time_slots"`
}

type session struct {
	ID       string    `json:"id"`
	Step     string    `json:"step"`
	Bookings int       `json:"bookings"`
	Messages []message `json:"messages"`
}

func (s session) lastBot() message {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Sender == "bot" {
			return s.Messages[i]
		}
	}
	return message{}
}

var errConflict = errors.New("conflict")

type Simulator struct {
	config  SimConfig
	clients []uuid.UUID
	client  *http.Client
	logger  *zap.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}
	logger, err := logging.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("identified_rate", cfg.IdentifiedRate),
		zap.Float64("confirm_rate", cfg.ConfirmRate),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	clients, err := directory.NewPgRepository(pgPool).ListClientIDs(ctx, cfg.ClientLimit)
	if err != nil {
		logger.Fatal("load clients", zap.Error(err))
	}
	logger.Info("loaded clients", zap.Int("count", len(clients)))

	sim := &Simulator{
		config:  cfg,
		clients: clients,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	return SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		IdentifiedRate: getFloat("SIM_IDENTIFIED_RATE", 0.6),
		ConfirmRate:    getFloat("SIM_CONFIRM_RATE", 0.8),
		ClientLimit:    getInt("SIM_CLIENT_LIMIT", 1000),
		PostgresDSN:    base.PostgresDSN,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

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
	faker := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for ctx.Err() == nil {
		start := time.Now()
		err := s.converse(ctx, rng, faker)
		s.metrics.Conversation.Record(time.Since(start), err == nil, errors.Is(err, errConflict))
		if err != nil && ctx.Err() == nil {
			s.logger.Debug("conversation ended early", zap.Int("worker", workerID), zap.Error(err))
		}
	}
}

// converse walks one conversation from greeting to confirmation.
func (s *Simulator) converse(ctx context.Context, rng *rand.Rand, faker *gofakeit.Faker) error {
	var body map[string]string
	if len(s.clients) > 0 && rng.Float64() < s.config.IdentifiedRate {
		body = map[string]string{"client_id": s.clients[rng.Intn(len(s.clients))].String()}
	}

	sess, err := s.call(ctx, &s.metrics.Start, http.MethodPost, "/sessions", body)
	if err != nil {
		return err
	}
	base := "/sessions/" + sess.ID

	sess, err = s.call(ctx, &s.metrics.Action, http.MethodPost, base+"/click",
		map[string]string{"label": "Agendar consulta", "value": "schedule"})
	if err != nil {
		if errors.Is(err, errConflict) {
			// A client without pets leaves the conversation where it started.
			atomic.AddInt64(&s.metrics.Stalled, 1)
		}
		return err
	}

	for sess.Step != "initial" {
		var path string
		var req map[string]string
		last := sess.lastBot()

		switch sess.Step {
		case "get_owner":
			path, req = "/text", map[string]string{"step": "get_owner", "text": faker.Name()}
		case "get_pet":
			path, req = "/text", map[string]string{"step": "get_pet", "text": faker.PetName()}
		case "get_pet_selection", "get_date", "get_service":
			if len(last.Options) == 0 {
				return fmt.Errorf("no options offered in %s", sess.Step)
			}
			opt := last.Options[rng.Intn(len(last.Options))]
			path, req = "/click", map[string]string{"label": opt.Label, "value": opt.Value}
		case "get_time":
			if len(last.TimeSlots) == 0 {
				return fmt.Errorf("no time slots offered")
			}
			path, req = "/times", map[string]string{"time": last.TimeSlots[rng.Intn(len(last.TimeSlots))]}
		case "confirm":
			req = map[string]string{"label": "Não, cancelar", "value": "restart"}
			if rng.Float64() < s.config.ConfirmRate {
				req = map[string]string{"label": "Sim, confirmar", "value": "confirm"}
			}
			path = "/confirm"
		default:
			return fmt.Errorf("unexpected step %q", sess.Step)
		}

		sess, err = s.call(ctx, &s.metrics.Action, http.MethodPost, base+path, req)
		if err != nil {
			return err
		}
	}

	if sess.Bookings > 0 {
		atomic.AddInt64(&s.metrics.Booked, 1)
	}
	return nil
}

func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, body map[string]string) (session, error) {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		om.Record(latency, false, false)
		return session{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		om.Record(latency, false, true)
		return session{}, fmt.Errorf("%s %s: %w (status %d)", method, path, errConflict, resp.StatusCode)
	case resp.StatusCode >= 300:
		om.Record(latency, false, false)
		return session{}, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	var sess session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		om.Record(latency, false, false)
		return session{}, fmt.Errorf("decode session: %w", err)
	}
	om.Record(latency, true, false)
	return sess, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Bookings confirmed: %d\n", atomic.LoadInt64(&s.metrics.Booked))
	fmt.Printf("Stalled (no pets): %d\n", atomic.LoadInt64(&s.metrics.Stalled))
	fmt.Println()

	printOperationReport("Start session", &s.metrics.Start)
	printOperationReport("Conversation action", &s.metrics.Action)
	printOperationReport("Full conversation", &s.metrics.Conversation)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

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
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

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

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NeoArcanjo/ex-banking/internal/bank"
	kafkaevents "github.com/NeoArcanjo/ex-banking/internal/events/kafka"
	memoryevents "github.com/NeoArcanjo/ex-banking/internal/events/memory"
	"github.com/NeoArcanjo/ex-banking/internal/interfaces"
	memorystore "github.com/NeoArcanjo/ex-banking/internal/storage/memory"
	postgresstore "github.com/NeoArcanjo/ex-banking/internal/storage/postgres"
)

type config struct {
	Addr             string
	AdmissionLimit   int
	TransferDeadline time.Duration
	DatabaseURL      string
	KafkaBrokers     []string
	RateLimitRPS     float64
	RateLimitBurst   int
}

func loadConfig() config {
	cfg := config{
		Addr:           ":8080",
		RateLimitRPS:   100,
		RateLimitBurst: 200,
	}

	if v := strings.TrimSpace(os.Getenv("ADDR")); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("ADMISSION_LIMIT")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.AdmissionLimit = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRANSFER_DEADLINE")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			cfg.TransferDeadline = parsed
		}
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			cfg.RateLimitRPS = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.RateLimitBurst = parsed
		}
	}

	return cfg
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := loadConfig()

	var journal interfaces.Journal = memorystore.NewJournalStore()
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open postgres", zap.Error(err))
		}
		defer db.Close()

		journal = postgresstore.NewJournalStore(db)
		logger.Info("audit journal: postgres")
	}

	var events interfaces.EventPublisher = memoryevents.NewPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaevents.NewPublisher(cfg.KafkaBrokers, bank.TopicTransferCompleted)
		defer publisher.Close()

		events = publisher
		logger.Info("event publisher: kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	b := bank.New(bank.Config{
		AdmissionLimit:   cfg.AdmissionLimit,
		TransferDeadline: cfg.TransferDeadline,
		Journal:          journal,
		Events:           events,
		Metrics:          prometheus.DefaultRegisterer,
	}, logger)

	mux := http.NewServeMux()
	registerRoutes(mux, b, logger)

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: withRateLimit(limiter, mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
		_ = b.Close(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", cfg.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// withRateLimit applies a global token bucket in front of the mux; requests
// beyond the burst get an immediate 429 instead of queuing.
func withRateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func registerRoutes(mux *http.ServeMux, b *bank.Bank, logger *zap.Logger) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			User string `json:"user"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if err := b.CreateUser(req.User); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"created"}`))
	})

	mux.HandleFunc("/deposit", balanceOp(b.Deposit))
	mux.HandleFunc("/withdraw", balanceOp(b.Withdraw))

	mux.HandleFunc("/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		user := r.URL.Query().Get("user")
		currency := r.URL.Query().Get("currency")

		balance, err := b.GetBalance(r.Context(), user, currency)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, struct {
			User     string          `json:"user"`
			Currency string          `json:"currency"`
			Balance  decimal.Decimal `json:"balance"`
		}{User: user, Currency: currency, Balance: balance})
	})

	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			From     string          `json:"from"`
			To       string          `json:"to"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		fromBalance, toBalance, err := b.Send(r.Context(), req.From, req.To, req.Amount, req.Currency)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, struct {
			FromBalance decimal.Decimal `json:"from_balance"`
			ToBalance   decimal.Decimal `json:"to_balance"`
		}{FromBalance: fromBalance, ToBalance: toBalance})
	})

	mux.HandleFunc("/ledgerEntries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		entries, err := b.LedgerEntries()
		if err != nil {
			logger.Error("list ledger entries", zap.Error(err))
			http.Error(w, "failed to read ledger entries", http.StatusInternalServerError)

			return
		}

		writeJSON(w, entries)
	})
}

// balanceOp adapts Deposit and Withdraw, which share a request and response
// shape.
func balanceOp(op func(context.Context, string, decimal.Decimal, string) (decimal.Decimal, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			User     string          `json:"user"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		balance, err := op(r.Context(), req.User, req.Amount, req.Currency)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, struct {
			Balance decimal.Decimal `json:"balance"`
		}{Balance: balance})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, bank.ErrWrongArguments):
		status = http.StatusBadRequest
	case errors.Is(err, bank.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, bank.ErrUserDoesNotExist),
		errors.Is(err, bank.ErrSenderDoesNotExist),
		errors.Is(err, bank.ErrReceiverDoesNotExist):
		status = http.StatusNotFound
	case errors.Is(err, bank.ErrNotEnoughMoney):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, bank.ErrTooManyRequestsToUser),
		errors.Is(err, bank.ErrTooManyRequestsToSender),
		errors.Is(err, bank.ErrTooManyRequestsToReceiver):
		status = http.StatusTooManyRequests
	case errors.Is(err, bank.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, bank.ErrTransferFailed):
		status = http.StatusBadGateway
	}

	http.Error(w, err.Error(), status)
}

package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sabar2001/poker-prestige/internal/gateway"
	"github.com/sabar2001/poker-prestige/internal/ledger"
	"github.com/sabar2001/poker-prestige/internal/lobby"
	"github.com/sabar2001/poker-prestige/internal/logging"
	"github.com/sabar2001/poker-prestige/internal/session"
	"github.com/sabar2001/poker-prestige/internal/table"
)

// config holds every server option, each overridable via an environment
// variable, in the usual flag+os.Getenv idiom.
type config struct {
	port        string
	steamAPIKey string // passthrough only; no component consumes it (mock identity provider ignores it)
	steamAppID  string // passthrough only, same reason
	databaseURL string
	env         string

	defaultBuyIn      int64
	defaultSmallBlind int64
	defaultBigBlind   int64

	turnTimeoutMs     int
	banterPhaseMs     int
	payoutAnimationMs int
	countdownMs       int
	sessionGraceMs    int
	socialTickHz      int
}

func loadConfig() config {
	var cfg config
	flag.StringVar(&cfg.port, "port", envOr("PORT", "18080"), "listen port")
	flag.StringVar(&cfg.steamAPIKey, "steamApiKey", os.Getenv("STEAM_API_KEY"), "Steam Web API key (passthrough, unused by the mock identity provider)")
	flag.StringVar(&cfg.steamAppID, "steamAppId", os.Getenv("STEAM_APP_ID"), "Steam application id (passthrough)")
	flag.StringVar(&cfg.databaseURL, "databaseUrl", os.Getenv("DATABASE_URL"), "ledger database URL (sqlite path, sqlite://, or postgres://)")
	flag.StringVar(&cfg.env, "env", envOr("POKERD_ENV", "development"), "deployment environment (development|production)")

	flag.Int64Var(&cfg.defaultBuyIn, "defaultBuyIn", envOrInt64("DEFAULT_BUY_IN", 1000), "default table buy-in")
	flag.Int64Var(&cfg.defaultSmallBlind, "defaultSmallBlind", envOrInt64("DEFAULT_SMALL_BLIND", 10), "default small blind")
	flag.Int64Var(&cfg.defaultBigBlind, "defaultBigBlind", envOrInt64("DEFAULT_BIG_BLIND", 20), "default big blind")

	flag.IntVar(&cfg.turnTimeoutMs, "turnTimeoutMs", envOrInt("TURN_TIMEOUT_MS", 30000), "per-action turn timeout")
	flag.IntVar(&cfg.banterPhaseMs, "banterPhaseMs", envOrInt("BANTER_PHASE_MS", 15000), "social-banter phase duration")
	flag.IntVar(&cfg.payoutAnimationMs, "payoutAnimationMs", envOrInt("PAYOUT_ANIMATION_MS", 5000), "payout-animation phase duration")
	flag.IntVar(&cfg.countdownMs, "countdownMs", envOrInt("COUNTDOWN_MS", 3000), "pre-deal countdown duration")
	flag.IntVar(&cfg.sessionGraceMs, "sessionGraceMs", envOrInt("SESSION_GRACE_MS", 60000), "reconnect grace window")
	flag.IntVar(&cfg.socialTickHz, "socialTickHz", envOrInt("SOCIAL_TICK_HZ", 10), "social-channel flush rate (passthrough; the social outbox is a drop-oldest ring drained by the write pump)")

	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	cfg := loadConfig()
	log := logging.New(cfg.env)

	ledgerService, err := ledger.NewFromURL(cfg.databaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init ledger service")
	}
	defer ledgerService.Close()

	defaultTableConfig := table.TableConfig{
		MaxPlayers:        6,
		SmallBlind:        cfg.defaultSmallBlind,
		BigBlind:          cfg.defaultBigBlind,
		MinBuyIn:          cfg.defaultBuyIn / 2,
		MaxBuyIn:          cfg.defaultBuyIn * 2,
		TurnTimeout:       time.Duration(cfg.turnTimeoutMs) * time.Millisecond,
		CountdownDuration: time.Duration(cfg.countdownMs) * time.Millisecond,
		PayoutDuration:    time.Duration(cfg.payoutAnimationMs) * time.Millisecond,
		BanterDuration:    time.Duration(cfg.banterPhaseMs) * time.Millisecond,
	}

	lby := lobby.New(defaultTableConfig, ledgerService, log)
	defer lby.Stop()

	identity := session.NewMockIdentityProvider()
	gw := gateway.New(lby, identity, time.Duration(cfg.sessionGraceMs)*time.Millisecond, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/tables", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(lby.List())
	})
	mux.HandleFunc("/dev/tables", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		t, err := lby.CreateTable(table.TableConfig{}, gw.BroadcastFunc())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"tableId": t.ID})
	})

	addr := ":" + cfg.port
	log.Info().Str("addr", addr).Msg("starting poker server")

	srv := &http.Server{Addr: addr, Handler: withCORS(mux)}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

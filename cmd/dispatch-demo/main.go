package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"method-dispatch/interception"
	"method-dispatch/interception/domain"
	"method-dispatch/interception/infra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "dispatch-demo",
		Short: "Runs an intercepted call site (logging, throttle, async) against a worker registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(v)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.String("workers", "", "YAML file with the worker registry (empty = local fallback worker)")
	f.Int("calls", 5, "number of calls to dispatch")
	f.Int("throttle", 1, "concurrency limit around the terminal (-1 unbounded, 0 closed)")
	f.Duration("work", 200*time.Millisecond, "simulated duration of each call")
	f.String("shape", "void", "result shape: void, future or completion")
	f.String("qualifier", "", "worker qualifier (supports ${prop:default} and #{expr})")
	f.Float64("rate-rps", 0, "token bucket rate per second (0 disables rate limiting)")
	f.Int("rate-burst", 1, "token bucket burst")
	f.String("log-format", "text", "log format: text or json")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("stats-redis-addr", "", "Redis address for outcome counters (empty = memory)")
	f.String("stats-redis-password", "", "Redis password")
	f.Int("stats-redis-db", 0, "Redis DB")
	f.String("stats-prefix", "dispatch:stats", "Redis key prefix")
	f.String("stats-report", "*/1 * * * * *", "cron spec (with seconds) for the stats report; empty disables")

	_ = v.BindPFlags(f)
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

type config struct {
	workersFile string
	calls       int
	throttle    int
	work        time.Duration
	shape       domain.ResultShape
	qualifier   string
	rateRPS     float64
	rateBurst   int
	logFormat   string
	logLevel    slog.Level

	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsReport        string
}

func readConfig(v *viper.Viper) (config, error) {
	cfg := config{
		workersFile:        v.GetString("workers"),
		calls:              v.GetInt("calls"),
		throttle:           v.GetInt("throttle"),
		work:               v.GetDuration("work"),
		qualifier:          v.GetString("qualifier"),
		rateRPS:            v.GetFloat64("rate-rps"),
		rateBurst:          v.GetInt("rate-burst"),
		logFormat:          strings.ToLower(v.GetString("log-format")),
		statsRedisAddr:     v.GetString("stats-redis-addr"),
		statsRedisPassword: v.GetString("stats-redis-password"),
		statsRedisDB:       v.GetInt("stats-redis-db"),
		statsPrefix:        v.GetString("stats-prefix"),
		statsReport:        strings.TrimSpace(v.GetString("stats-report")),
	}

	switch strings.ToLower(v.GetString("shape")) {
	case "void":
		cfg.shape = domain.ShapeVoid
	case "future":
		cfg.shape = domain.ShapeFuture
	case "completion":
		cfg.shape = domain.ShapeCompletion
	default:
		return config{}, fmt.Errorf("unknown shape %q", v.GetString("shape"))
	}
	if err := cfg.logLevel.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return config{}, fmt.Errorf("invalid log level: %w", err)
	}

	if cfg.logFormat != "text" && cfg.logFormat != "json" {
		return config{}, errors.New("log-format must be text or json")
	}
	if cfg.calls <= 0 {
		return config{}, errors.New("calls must be > 0")
	}
	if cfg.throttle < -1 {
		return config{}, errors.New("throttle must be >= -1")
	}
	if cfg.rateRPS < 0 {
		return config{}, errors.New("rate-rps must be >= 0")
	}
	if cfg.rateRPS > 0 && cfg.rateBurst <= 0 {
		return config{}, errors.New("rate-burst must be > 0")
	}
	return cfg, nil
}

func newLogger(cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.logLevel}
	if cfg.logFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(parent context.Context, cfg config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	reg := infra.NewRegistry()
	if cfg.workersFile != "" {
		specs, err := infra.LoadWorkerSpecs(cfg.workersFile)
		if err != nil {
			return err
		}
		if reg, err = infra.BuildRegistry(specs, logger); err != nil {
			return err
		}
	} else {
		worker := infra.NewGoroutineWorker(infra.WithWorkerLogger(logger))
		if err := reg.Register(domain.DefaultWorkerName, domain.KindTaskExecutor, worker); err != nil {
			return err
		}
	}
	// o agendador do relatório entra no registry para ser parado no Shutdown
	scheduler := infra.NewCronWorker(logger)
	if err := reg.Register("stats-reporter", domain.KindExecutor, scheduler); err != nil {
		return err
	}
	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return reg.Shutdown(shutdownCtx)
	}
	// Stop é idempotente; cobre os retornos antecipados
	defer func() { _ = shutdown() }()

	var stats domain.StatsStore
	var report func(context.Context) (infra.Counters, error)
	if cfg.statsRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.statsRedisAddr,
			Password: cfg.statsRedisPassword,
			DB:       cfg.statsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis stats ping error: %w", err)
		}
		rs := infra.NewRedisStatsStore(rdb, infra.WithStatsPrefix(cfg.statsPrefix))
		stats, report = rs, rs.Total
	} else {
		ms := infra.NewMemoryStatsStore()
		stats = ms
		report = func(context.Context) (infra.Counters, error) { return ms.Total(), nil }
	}

	if cfg.statsReport != "" {
		_, err := scheduler.ScheduleTask(cfg.statsReport, func(ctx context.Context) (any, error) {
			total, err := report(ctx)
			if err != nil {
				return nil, err
			}
			logger.Info("dispatch stats", "counters", total)
			return nil, nil
		})
		if err != nil {
			return err
		}
	}

	terminal := func(ctx context.Context, _ any, args []any) (any, error) {
		x := args[0].(int)
		select {
		case <-time.After(cfg.work):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		logger.Info("terminal ran", "x", x, "result", x*2)
		return x * 2, nil
	}

	interceptors := []domain.Interceptor{
		interception.Tracing(nil),
		interception.Logging(logger),
		interception.Concurrency(interception.ConcurrencyOptions{Limit: cfg.throttle}),
		interception.Async(interception.AsyncOptions{
			Registry:   reg,
			Qualifiers: infra.NewPropertyResolver(propertiesFromEnv()),
			Stats:      stats,
			Logger:     logger,
		}),
	}
	if cfg.rateRPS > 0 {
		store := infra.NewStore(cfg.rateRPS, cfg.rateBurst)
		if _, err := store.ScheduleCleanup(scheduler, 2*time.Minute); err != nil {
			return err
		}
		interceptors = append(interceptors, interception.RateLimit(interception.RateLimitOptions{
			Store: store,
			Stats: stats,
		}))
	}

	call := interception.Wrap(terminal, interception.Options{
		Site: domain.CallSite{
			Name:      "double",
			Shape:     cfg.shape,
			Qualifier: cfg.qualifier,
		},
		Interceptors: interceptors,
		SortByOrder:  true,
	})

	logger.Info("dispatching", "calls", cfg.calls, "shape", cfg.shape, "throttle", cfg.throttle)
	for i := 1; i <= cfg.calls; i++ {
		res, err := call(ctx, i)
		if err != nil {
			logger.Warn("call rejected", "x", i, "error", err)
			continue
		}
		if fut, ok := res.(domain.Future); ok {
			fut.OnComplete(func(r domain.Result) {
				logger.Info("future completed", "value", r.Value, "error", r.Err)
			})
		}
	}

	// espera as continuações em voo
	if err := shutdown(); err != nil {
		return fmt.Errorf("worker shutdown: %w", err)
	}

	total, err := report(context.Background())
	if err != nil {
		return err
	}
	logger.Info("done", "counters", total)
	return nil
}

// propertiesFromEnv expõe DISPATCH_PROP_<NOME>=valor como propriedade "nome"
// para os qualificadores ${...} e #{...}.
func propertiesFromEnv() map[string]any {
	props := make(map[string]any)
	for _, kv := range os.Environ() {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "DISPATCH_PROP_") {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, "DISPATCH_PROP_"))
		props[strings.ReplaceAll(name, "_", ".")] = val
	}
	return props
}

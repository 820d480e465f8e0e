package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"method-dispatch/interception/domain"
)

const (
	WorkerTypePool      = "pool"
	WorkerTypeGoroutine = "goroutine"
	WorkerTypeCron      = "cron"
)

// WorkerSpec descreve um worker declarado em configuração.
type WorkerSpec struct {
	Name             string            `yaml:"name" mapstructure:"name"`
	Kind             domain.WorkerKind `yaml:"kind" mapstructure:"kind"`
	Type             string            `yaml:"type" mapstructure:"type"`
	MaxWorkers       int               `yaml:"maxWorkers" mapstructure:"maxWorkers"`
	ConcurrencyLimit int               `yaml:"concurrencyLimit" mapstructure:"concurrencyLimit"`
	IdleTimeout      time.Duration     `yaml:"idleTimeout" mapstructure:"idleTimeout"`
	UrgentBypass     bool              `yaml:"urgentBypass" mapstructure:"urgentBypass"`
}

type workerFile struct {
	Workers []WorkerSpec `yaml:"workers"`
}

// LoadWorkerSpecs lê a lista "workers:" de um arquivo YAML.
func LoadWorkerSpecs(path string) ([]WorkerSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read worker config %s: %w", path, err)
	}
	var f workerFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse worker config %s: %w", path, err)
	}
	return f.Workers, nil
}

// DecodeWorkerSpecs converte uma estrutura genérica (ex.: viper.Get("workers"))
// em WorkerSpec. Durações aceitam "30s", "1m" etc.
func DecodeWorkerSpecs(raw any) ([]WorkerSpec, error) {
	var specs []WorkerSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &specs,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid worker config: %w", err)
	}
	return specs, nil
}

func (s WorkerSpec) validate() error {
	if s.Name == "" {
		return errors.New("worker name is required")
	}
	switch s.Type {
	case "", WorkerTypePool, WorkerTypeGoroutine, WorkerTypeCron:
	default:
		return fmt.Errorf("worker %q: unknown type %q", s.Name, s.Type)
	}
	if s.ConcurrencyLimit < Unbounded {
		return fmt.Errorf("worker %q: concurrencyLimit must be >= -1", s.Name)
	}
	return nil
}

// Build cria o worker descrito. Type vazio = goroutine.
func (s WorkerSpec) Build(logger *slog.Logger) (domain.Worker, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("worker", s.Name)

	limit := s.ConcurrencyLimit
	if limit == 0 {
		// 0 em configuração = campo omitido
		limit = Unbounded
	}
	gopts := []GoroutineOption{
		WithConcurrencyLimit(limit),
		WithUrgentBypass(s.UrgentBypass),
		WithWorkerLogger(logger),
	}

	switch s.Type {
	case WorkerTypePool:
		return NewPoolWorker(
			WithMaxWorkers(s.MaxWorkers),
			WithMaxIdle(s.IdleTimeout),
			WithPoolLogger(logger),
		), nil
	case WorkerTypeCron:
		return NewCronWorker(logger, gopts...), nil
	default:
		return NewGoroutineWorker(gopts...), nil
	}
}

func (s WorkerSpec) kind() domain.WorkerKind {
	if s.Kind != "" {
		return s.Kind
	}
	if s.Type == WorkerTypeCron {
		return domain.KindScheduler
	}
	return domain.KindExecutor
}

// BuildRegistry cria e registra os workers na ordem dada.
func BuildRegistry(specs []WorkerSpec, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, s := range specs {
		w, err := s.Build(logger)
		if err == nil {
			if err = reg.Register(s.Name, s.kind(), w); err != nil {
				if st, ok := w.(domain.Stopper); ok {
					_ = st.Stop(context.Background())
				}
			}
		}
		if err != nil {
			_ = reg.Shutdown(context.Background())
			return nil, err
		}
	}
	return reg, nil
}

package infra

import (
	"context"
	"sync"

	"method-dispatch/interception/domain"
)

// Counters conta eventos por desfecho.
type Counters map[domain.Outcome]int64

func (c Counters) clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu     sync.Mutex
	total  Counters
	bySite map[string]Counters
	byKey  map[domain.Key]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		total:  make(Counters),
		bySite: make(map[string]Counters),
		byKey:  make(map[domain.Key]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total[ev.Outcome]++

	c := s.bySite[ev.Site]
	if c == nil {
		c = make(Counters)
		s.bySite[ev.Site] = c
	}
	c[ev.Outcome]++

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[ev.Key]
		if k == nil {
			k = make(Counters)
			s.byKey[ev.Key] = k
		}
		k[ev.Outcome]++
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.clone()
}

func (s *MemoryStatsStore) BySite() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.bySite))
	for k, v := range s.bySite {
		out[k] = v.clone()
	}
	return out
}

func (s *MemoryStatsStore) ByKey() map[domain.Key]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.Key]Counters, len(s.byKey))
	for k, v := range s.byKey {
		out[k] = v.clone()
	}
	return out
}

package infra

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"method-dispatch/interception/domain"
)

// Store mantém um token bucket (x/time/rate) por chave de invocação.
//
// As chaves seguem o formato de interception.DefaultKeyFunc: "site" ou
// "site:arg". Como a parte do argumento pode ter cardinalidade alta, o Store
// limita o número de chaves e agrupa os buckets por call site.
type Store struct {
	mu      sync.Mutex
	buckets map[domain.Key]*siteBucket
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
	maxKeys int
}

type siteBucket struct {
	site     string
	lim      *TokenBucket
	lastSeen time.Time
}

type StoreOption func(*Store)

// WithIdleTTL define depois de quanto tempo sem uso um bucket cheio pode sair.
func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

// WithMaxKeys limita quantas chaves ficam em memória (0 = sem limite).
// Ao passar do limite, a chave usada há mais tempo sai.
func WithMaxKeys(n int) StoreOption {
	return func(s *Store) { s.maxKeys = n }
}

func NewStore(rps float64, burst int, opts ...StoreOption) *Store {
	s := &Store{
		buckets: make(map[domain.Key]*siteBucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
		maxKeys: 10000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RPS() float64 { return float64(s.rps) }
func (s *Store) Burst() int   { return s.burst }

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.Bucket(key)
}

func (s *Store) Bucket(key domain.Key) *TokenBucket {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.buckets[key]; ok {
		b.lastSeen = now
		return b.lim
	}
	if s.maxKeys > 0 && len(s.buckets) >= s.maxKeys {
		s.evictOldest()
	}
	site, _, _ := strings.Cut(string(key), ":")
	b := &siteBucket{
		site:     site,
		lim:      &TokenBucket{Limiter: rate.NewLimiter(s.rps, s.burst)},
		lastSeen: now,
	}
	s.buckets[key] = b
	return b.lim
}

func (s *Store) evictOldest() {
	var oldest domain.Key
	var at time.Time
	for k, b := range s.buckets {
		if at.IsZero() || b.lastSeen.Before(at) {
			oldest, at = k, b.lastSeen
		}
	}
	delete(s.buckets, oldest)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Sites devolve os call sites com pelo menos um bucket, ordenados.
func (s *Store) Sites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, b := range s.buckets {
		seen[b.site] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for site := range seen {
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}

// ForgetSite descarta todos os buckets de um call site e devolve quantos saíram.
func (s *Store) ForgetSite(site string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, b := range s.buckets {
		if b.site == site {
			delete(s.buckets, k)
			n++
		}
	}
	return n
}

// Cleanup remove buckets ociosos há mais de idleTTL e já cheios: um bucket
// parcialmente consumido ainda carrega estado de limitação e fica.
func (s *Store) Cleanup() int {
	now := time.Now()
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, b := range s.buckets {
		if b.lastSeen.After(cutoff) {
			continue
		}
		if b.lim.TokensAt(now) < float64(s.burst) {
			continue
		}
		delete(s.buckets, k)
		n++
	}
	return n
}

// ScheduleCleanup agenda Cleanup no CronWorker a cada `every`.
func (s *Store) ScheduleCleanup(c *CronWorker, every time.Duration) (cron.EntryID, error) {
	if every <= 0 {
		return 0, fmt.Errorf("cleanup interval must be > 0, got %s", every)
	}
	return c.Schedule("@every "+every.String(), func() {
		if n := s.Cleanup(); n > 0 {
			c.logger.Debug("rate limit buckets evicted", "count", n, "remaining", s.Len())
		}
	})
}

// TokenBucket adapta *rate.Limiter para domain.Limiter e domain.RetryHinter.
type TokenBucket struct {
	*rate.Limiter
}

// RetryIn estima a espera até o próximo token sem consumi-lo.
func (b *TokenBucket) RetryIn() time.Duration {
	r := b.Reserve()
	if !r.OK() {
		return 0
	}
	d := r.Delay()
	r.Cancel()
	return d
}

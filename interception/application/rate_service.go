package application

import (
	"time"

	"method-dispatch/interception/domain"
)

// RateService concentra a regra do rate limit.
//
// Ele não sabe nada sobre a invocação (argumentos, call site), apenas recebe a
// chave e retorna uma decisão.
type RateService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

func (s RateService) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}

	lim := s.Store.Get(key)
	if lim == nil || lim.Allow() {
		return domain.Decision{Allowed: true}
	}

	retry := s.RetryAfter
	if h, ok := lim.(domain.RetryHinter); ok {
		if d := h.RetryIn(); d > 0 {
			retry = d
		}
	}
	if retry <= 0 {
		retry = 1 * time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: retry}
}

package application

import (
	"context"

	"method-dispatch/interception/domain"
)

// invocation implementa domain.Invocation com um cursor sobre a Chain.
type invocation struct {
	id     string
	ctx    context.Context
	target any
	site   domain.CallSite
	args   []any
	chain  *Chain
	index  int
}

var _ domain.Invocation = (*invocation)(nil)

func (inv *invocation) ID() string                     { return inv.id }
func (inv *invocation) Context() context.Context       { return inv.ctx }
func (inv *invocation) SetContext(ctx context.Context) { inv.ctx = ctx }
func (inv *invocation) Target() any                    { return inv.target }
func (inv *invocation) CallSite() domain.CallSite      { return inv.site }
func (inv *invocation) Arguments() []any               { return inv.args }

func (inv *invocation) SetArgument(i int, v any) { inv.args[i] = v }

// Proceed avança o cursor um elo; depois do último, chama o terminal.
func (inv *invocation) Proceed() (any, error) {
	inv.index++
	if inv.index >= len(inv.chain.interceptors) {
		return inv.chain.terminal(inv.ctx, inv.target, inv.args)
	}
	return inv.chain.interceptors[inv.index].Invoke(inv)
}

// Clone copia a invocação na posição atual, com cópia rasa dos argumentos.
// Proceed no clone roda de novo o restante da cadeia.
func (inv *invocation) Clone() domain.Invocation {
	cp := *inv
	cp.args = append([]any(nil), inv.args...)
	return &cp
}

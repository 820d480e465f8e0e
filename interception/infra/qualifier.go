package infra

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"method-dispatch/interception/domain"
)

// PropertyResolver expande qualificadores antes da busca no registry:
//
//	"${async.worker}"          valor da propriedade (erro se ausente)
//	"${async.worker:reports}"  valor da propriedade ou "reports"
//	"#{env == 'prod' ? 'big' : 'small'}"  expressão expr com as propriedades como variáveis
//
// Qualquer outro texto é devolvido sem mudança.
type PropertyResolver struct {
	mu    sync.RWMutex
	props map[string]any

	programs sync.Map // string -> *vm.Program
}

var _ domain.QualifierResolver = (*PropertyResolver)(nil)

func NewPropertyResolver(props map[string]any) *PropertyResolver {
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return &PropertyResolver{props: cp}
}

func (r *PropertyResolver) Set(key string, value any) {
	r.mu.Lock()
	r.props[key] = value
	r.mu.Unlock()
}

func (r *PropertyResolver) ResolveQualifier(q string) (string, error) {
	q = strings.TrimSpace(q)
	switch {
	case strings.HasPrefix(q, "${") && strings.HasSuffix(q, "}"):
		return r.placeholder(q[2 : len(q)-1])
	case strings.HasPrefix(q, "#{") && strings.HasSuffix(q, "}"):
		return r.eval(q[2 : len(q)-1])
	default:
		return q, nil
	}
}

func (r *PropertyResolver) placeholder(body string) (string, error) {
	key, def, hasDef := strings.Cut(body, ":")
	key = strings.TrimSpace(key)

	r.mu.RLock()
	v, ok := r.props[key]
	r.mu.RUnlock()
	if ok && v != nil {
		return fmt.Sprint(v), nil
	}
	if hasDef {
		return def, nil
	}
	return "", fmt.Errorf("unresolved qualifier placeholder %q", key)
}

func (r *PropertyResolver) eval(src string) (string, error) {
	program, err := r.compile(src)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	env := make(map[string]any, len(r.props))
	for k, v := range r.props {
		env[k] = v
	}
	r.mu.RUnlock()

	out, err := expr.Run(program, env)
	if err != nil {
		return "", fmt.Errorf("qualifier expression %q: %w", src, err)
	}
	s, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("qualifier expression %q yielded %T, want string", src, out)
	}
	return s, nil
}

func (r *PropertyResolver) compile(src string) (*vm.Program, error) {
	if p, ok := r.programs.Load(src); ok {
		return p.(*vm.Program), nil
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("qualifier expression %q: %w", src, err)
	}
	r.programs.Store(src, program)
	return program, nil
}

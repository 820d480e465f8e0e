package application

import (
	"sort"

	"method-dispatch/interception/domain"
)

// OrderOf devolve a precedência de um interceptor.
// Quem não implementa domain.Ordered fica com LowestPrecedence.
func OrderOf(ic domain.Interceptor) int {
	if o, ok := ic.(domain.Ordered); ok {
		return o.Order()
	}
	return domain.LowestPrecedence
}

// SortInterceptors devolve uma cópia ordenada por precedência.
// A ordenação é estável: empates mantêm a ordem de construção.
func SortInterceptors(list []domain.Interceptor) []domain.Interceptor {
	out := append([]domain.Interceptor(nil), list...)
	sort.SliceStable(out, func(i, j int) bool { return OrderOf(out[i]) < OrderOf(out[j]) })
	return out
}

// Package application contém os casos de uso da interceptação: execução da cadeia,
// throttle com timeout, rate limit, resolução de workers, despacho assíncrono e
// roteamento de erros não observáveis.
//
// Ele depende apenas do pacote domain. Workers, throttle concreto e registry
// chegam por injeção (ver pacote infra).
// Ex.: Chain.Execute(ctx, target, site, args) percorre os interceptores na ordem
// de construção e chama o Terminal no fim.
package application

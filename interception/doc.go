// Package interception monta cadeias de interceptores em volta de uma operação
// e oferece os interceptores prontos (async, throttle, rate limit, log, trace).
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (Invocation, Interceptor, Worker, Future)
//   - application: casos de uso (cadeia, resolução de worker, despacho, roteamento de erro)
//   - infra: implementações concretas (throttle, workers, registry, token bucket, stats)
//   - interception (este pacote): opções + wiring, no formato Wrap(terminal, Options)
//
// Fluxo de uma chamada:
//
//  1. Invoker recebe ctx e argumentos e cria a Invocation
//  2. Cada interceptor roda código antes/depois de inv.Proceed()
//  3. O Async (mais externo por padrão) entrega o resto da cadeia a um worker
//  4. O Terminal executa a operação real
//
// Erros de chamadas void/completion não chegam ao chamador: vão para o
// ExceptionHandler configurado em AsyncOptions.
package interception

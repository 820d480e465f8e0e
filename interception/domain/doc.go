// Package domain define contratos e tipos de domínio para interceptação de chamadas
// e despacho assíncrono.
//
// Este pacote não depende de implementações concretas (workers, throttle, redis).
// A intenção é permitir testes de unidade puros e desacoplar as regras da cadeia
// de interceptores dos detalhes de infraestrutura.
package domain

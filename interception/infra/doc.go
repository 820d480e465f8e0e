// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - Throttle: semáforo com limite reconfigurável (-1 sem limite, 0 fechado)
//   - GoroutineWorker, PoolWorker, CronWorker: workers para o despacho assíncrono
//   - Registry + WorkerSpec: registro de workers por nome, montado a partir de YAML
//   - PropertyResolver: expansão de qualificadores (${prop}, #{expr})
//   - Store: token bucket por chave usando golang.org/x/time/rate
//   - MemoryStatsStore / RedisStatsStore: contadores de desfechos
package infra

package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Mensagens fixas devolvidas quando o LLM falha.
const (
	ApologyText          = "Desculpe, não consegui processar sua consulta no momento. Tente novamente em instantes."
	SummaryUnavailable   = "Resumo não disponível."
	DiagnosisUnavailable = "Pré-diagnóstico não disponível."
)

const (
	itemsPerCategory = 15
	fallbackItems    = 5
)

// ============================================================
// Bridge: monta o prompt e conversa com o LLM
// ============================================================
//
// O Bridge nunca devolve erro para o chamador: qualquer falha do LLM vira uma
// mensagem fixa em português. As respostas de /consulta ficam num cache FIFO
// indexado pelo hash do prompt.

type Bridge struct {
	llm     port.LLM
	cache   port.Cache[string]
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewBridge(llm port.LLM, cache port.Cache[string], metrics *observability.Metrics, logger *zap.Logger) *Bridge {
	return &Bridge{llm: llm, cache: cache, metrics: metrics, logger: logger}
}

// Answer responde uma pergunta livre com base no snapshot. O payload
// estruturado é extraído em paralelo ao texto e é nil quando o LLM falha.
func (b *Bridge) Answer(ctx context.Context, text string, snap *domain.ContextSnapshot) (string, *domain.ConsultaData) {
	ctx, span := tracer.Start(ctx, "Bridge.Answer")
	defer span.End()

	prompt := buildPrompt(text, snap)
	key := promptKey(prompt)
	span.SetAttributes(attribute.Int("prompt.bytes", len(prompt)))

	if cached, ok := b.cache.Get(key); ok {
		b.metrics.IncrCacheHit(observability.CacheLLM)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, ExtractData(text, snap)
	}
	b.metrics.IncrCacheMiss(observability.CacheLLM)

	start := time.Now()
	reply, err := b.llm.Complete(ctx, prompt)
	b.metrics.RecordRequestDuration("llm", time.Since(start))
	if err != nil {
		span.RecordError(err)
		b.metrics.IncrExternalError("llm")
		b.metrics.IncrFallback()
		b.logger.Error("llm answer failed", zap.Error(err))
		return ApologyText, nil
	}

	reply = strings.TrimSpace(reply)
	b.cache.Set(key, reply)
	return reply, ExtractData(text, snap)
}

// Summarize resume o problema relatado pelo cliente.
func (b *Bridge) Summarize(ctx context.Context, problema string) string {
	ctx, span := tracer.Start(ctx, "Bridge.Summarize")
	defer span.End()

	prompt := "Resuma o seguinte problema relatado de forma concisa e técnica, focando nos pontos principais: " + problema
	reply, err := b.llm.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(reply) == "" {
		span.RecordError(err)
		b.metrics.IncrFallback()
		b.logger.Warn("llm summary failed", zap.Error(err))
		return SummaryUnavailable
	}
	return strings.TrimSpace(reply)
}

// Diagnose gera um pré-diagnóstico de bancada para o aparelho.
func (b *Bridge) Diagnose(ctx context.Context, tipoAparelho, marcaModelo, problema string) string {
	ctx, span := tracer.Start(ctx, "Bridge.Diagnose")
	defer span.End()

	reply, err := b.llm.Complete(ctx, diagnosisPrompt(tipoAparelho, marcaModelo, problema))
	if err != nil || strings.TrimSpace(reply) == "" {
		span.RecordError(err)
		b.metrics.IncrFallback()
		b.logger.Warn("llm diagnosis failed", zap.Error(err))
		return DiagnosisUnavailable
	}
	return strings.TrimSpace(reply)
}

func promptKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

func diagnosisPrompt(tipoAparelho, marcaModelo, problema string) string {
	return "Atue como um técnico sênior de reparo de computadores e smartphones, focado em diagnóstico rápido de bancada.\n\n" +
		"Contexto do atendimento:\n" +
		"- Aparelho: " + strings.TrimSpace(tipoAparelho+" "+marcaModelo) + "\n" +
		"- Problema relatado: " + problema + "\n\n" +
		"Regras obrigatórias:\n" +
		"- NÃO repita o problema relatado.\n" +
		"- NÃO reescreva nem resuma o contexto.\n" +
		"- Escreva apenas texto simples (sem listas além do bloco final, sem markdown).\n" +
		"- Comece pela causa mais provável.\n" +
		"- Linguagem técnica e extremamente concisa.\n" +
		"- No máximo 60 palavras no total.\n" +
		"- Sem explicações teóricas.\n\n" +
		"Responda em português do Brasil, neste formato:\n" +
		"Parágrafo 1: uma frase curta com a causa mais provável.\n\n" +
		"Parágrafo 2: uma frase curta com o primeiro teste a fazer.\n\n" +
		"Termine exatamente com:\n\n" +
		"Suspeitos principais:\n" +
		"1) <causa> – Testar: <teste direto>\n" +
		"2) <causa> – Testar: <teste direto>"
}

// ============================================================
// Montagem do prompt de consulta
// ============================================================

const promptInstructions = `Você é o assistente virtual de uma assistência técnica de celulares e computadores.
Responda em português do Brasil, de forma curta e objetiva, usando somente os dados da oficina abaixo.
Se a informação não estiver nos dados, diga que não encontrou. Não invente nomes, números ou valores.
Use valores no formato R$ 1.234,56 e datas no formato DD/MM/AAAA.`

const promptExamples = `Exemplos:
Pergunta: qual o status da OS 12?
Resposta: A OS #OS0012 (notebook Dell de João Souza) está Em reparo.
Pergunta: quanto faturamos?
Resposta: O faturamento com OS entregues é de R$ 4.350,00, em 18 ordens entregues.
Pergunta: tem teclado em estoque?
Resposta: Sim, há 3 unidades de Teclado USB (código TEC-01), abaixo do mínimo de 5.`

// buildPrompt seleciona as categorias citadas na pergunta (até 15 itens cada)
// ou, se nenhuma for citada, uma amostra de 5 itens por categoria.
func buildPrompt(text string, snap *domain.ContextSnapshot) string {
	if snap == nil {
		snap = &domain.ContextSnapshot{}
	}
	u := newUtterance(text)

	wantClients := clientCategory.in(u)
	wantOrders := orderCategory.in(u)
	wantProducts := productCategory.in(u) || lowStockPhrases.in(u)
	limit := itemsPerCategory
	if !wantClients && !wantOrders && !wantProducts {
		wantClients, wantOrders, wantProducts = true, true, true
		limit = fallbackItems
	}

	var b strings.Builder
	b.WriteString(promptInstructions)
	b.WriteString("\n\n")
	b.WriteString(promptExamples)
	b.WriteString("\n\nDADOS DA OFICINA\n")
	writeTotals(&b, snap.Totais)

	tokens := queryTokens(u, 2)
	if wantClients {
		writeClients(&b, prioritizeClients(snap.Clientes, tokens), limit)
	}
	if wantOrders {
		writeOrders(&b, prioritizeOrders(snap.Ordens, u, tokens), limit)
	}
	if wantProducts {
		writeProducts(&b, prioritizeProducts(snap.Produtos, u, tokens), limit)
	}

	b.WriteString("\nPergunta: ")
	b.WriteString(strings.TrimSpace(text))
	b.WriteString("\nResposta:")
	return b.String()
}

func writeTotals(b *strings.Builder, t domain.SnapshotTotals) {
	fmt.Fprintf(b, "Totais: %d clientes, %d ordens de serviço, %d entregues, faturamento %s.\n",
		t.TotalClientes, t.TotalOS, t.OSEntregues, formatBRL(t.FaturamentoTotal))
}

func writeClients(b *strings.Builder, clients []domain.Client, limit int) {
	fmt.Fprintf(b, "\nClientes (%d de %d):\n", min(limit, len(clients)), len(clients))
	for i, c := range clients {
		if i == limit {
			break
		}
		fmt.Fprintf(b, "- %s | CPF/CNPJ %s | tel %s", c.Nome, orDash(c.CPFCNPJ), orDash(c.Telefone))
		if c.Email != "" {
			b.WriteString(" | " + c.Email)
		}
		b.WriteString("\n")
	}
}

func writeOrders(b *strings.Builder, orders []domain.ServiceOrder, limit int) {
	fmt.Fprintf(b, "\nOrdens de serviço (%d de %d):\n", min(limit, len(orders)), len(orders))
	for i, o := range orders {
		if i == limit {
			break
		}
		fmt.Fprintf(b, "- %s | cliente %s | %s | problema: %s | status: %s | orçamento %s",
			o.Numero, orDash(o.ClienteNome), orDash(strings.TrimSpace(o.TipoAparelho+" "+o.MarcaModelo)),
			orDash(o.ProblemaRelatado), o.Status.Label(), formatBRL(o.ValorOrcamento))
		if !o.CriadoEm.IsZero() {
			b.WriteString(" | aberta em " + o.CriadoEm.Format("02/01/2006"))
		}
		b.WriteString("\n")
	}
}

func writeProducts(b *strings.Builder, products []domain.Product, limit int) {
	fmt.Fprintf(b, "\nProdutos (%d de %d):\n", min(limit, len(products)), len(products))
	for i, p := range products {
		if i == limit {
			break
		}
		fmt.Fprintf(b, "- %s | código %s | qtd %d (mín %d) | venda %s", p.Nome, orDash(p.Codigo), p.Quantidade, p.EstoqueMinimo, formatBRL(p.PrecoVenda))
		if p.LowStock() {
			b.WriteString(" | ESTOQUE BAIXO")
		}
		b.WriteString("\n")
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// rankBy ordena pelo score decrescente sem perder a ordem original nos empates,
// para que os itens citados na pergunta sobrevivam ao corte por categoria.
func rankBy[T any](in []T, score func(T) float64) []T {
	type scored struct {
		item  T
		score float64
	}
	tmp := make([]scored, len(in))
	for i, v := range in {
		tmp[i] = scored{v, score(v)}
	}
	sort.SliceStable(tmp, func(a, b int) bool { return tmp[a].score > tmp[b].score })
	out := make([]T, len(tmp))
	for i := range tmp {
		out[i] = tmp[i].item
	}
	return out
}

func prioritizeClients(in []domain.Client, tokens []string) []domain.Client {
	return rankBy(in, func(c domain.Client) float64 {
		return fuzzyScore(tokens, fold(c.Nome), "")
	})
}

func prioritizeOrders(in []domain.ServiceOrder, u utterance, tokens []string) []domain.ServiceOrder {
	numero, hasNumero := extractOrderNumber(u.folded)
	status, hasStatus := detectStatus(u)
	return rankBy(in, func(o domain.ServiceOrder) float64 {
		s := fuzzyScore(tokens, fold(o.ClienteNome), "")
		if hasNumero && strings.EqualFold(o.Numero, numero) {
			s += 1000
		}
		if hasStatus && o.Status == status {
			s += 500
		}
		return s
	})
}

func prioritizeProducts(in []domain.Product, u utterance, tokens []string) []domain.Product {
	lowStock := lowStockPhrases.in(u)
	return rankBy(in, func(p domain.Product) float64 {
		s := fuzzyScore(tokens, fold(p.Nome), fold(p.Codigo))
		if lowStock && p.LowStock() {
			s += 500
		}
		return s
	})
}

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/cache"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func newTestBridge(llm *fakeLLM) *Bridge {
	return NewBridge(llm, cache.NewFIFO[string](50, nil), observability.NewMetrics(), zap.NewNop())
}

func TestBridge_AnswerCachesByPrompt(t *testing.T) {
	llm := &fakeLLM{reply: "  A OS #OS0007 está Em reparo.  "}
	b := newTestBridge(llm)
	snap := testSnapshot()

	text, data := b.Answer(context.Background(), "qual o status da os 7?", snap)
	if text != "A OS #OS0007 está Em reparo." {
		t.Errorf("reply should be trimmed, got %q", text)
	}
	if data == nil || data.Tipo != PayloadOS || data.OS.ID != 7 {
		t.Errorf("unexpected payload %+v", data)
	}

	_, _ = b.Answer(context.Background(), "qual o status da os 7?", snap)
	if llm.calls() != 1 {
		t.Errorf("LLM called %d times, want 1", llm.calls())
	}
}

func TestBridge_AnswerFailureApologizes(t *testing.T) {
	b := newTestBridge(&fakeLLM{err: errors.New("connection refused")})

	text, data := b.Answer(context.Background(), "qual o status da os 7?", testSnapshot())
	if text != ApologyText {
		t.Errorf("got %q, want the apology", text)
	}
	if data != nil {
		t.Errorf("payload should be empty on failure, got %+v", data)
	}
}

func TestBridge_SummaryAndDiagnosis(t *testing.T) {
	llm := &fakeLLM{reply: "Tela trincada após queda."}
	b := newTestBridge(llm)

	if got := b.Summarize(context.Background(), "cliente deixou cair e a tela trincou"); got != "Tela trincada após queda." {
		t.Errorf("Summarize = %q", got)
	}
	_ = b.Diagnose(context.Background(), "Notebook", "Dell Inspiron", "não liga")
	last := llm.prompts[len(llm.prompts)-1]
	for _, want := range []string{"Notebook Dell Inspiron", "não liga", "60 palavras", "Suspeitos principais:"} {
		if !strings.Contains(last, want) {
			t.Errorf("diagnosis prompt missing %q", want)
		}
	}

	failing := newTestBridge(&fakeLLM{err: errors.New("timeout")})
	if got := failing.Summarize(context.Background(), "x"); got != SummaryUnavailable {
		t.Errorf("Summarize fallback = %q", got)
	}
	if got := failing.Diagnose(context.Background(), "a", "b", "c"); got != DiagnosisUnavailable {
		t.Errorf("Diagnose fallback = %q", got)
	}
}

func bigSnapshot(n int) *domain.ContextSnapshot {
	snap := &domain.ContextSnapshot{}
	for i := 1; i <= n; i++ {
		snap.Clientes = append(snap.Clientes, domain.Client{ID: int64(i), Nome: fmt.Sprintf("Cliente Numero %d", i)})
		snap.Ordens = append(snap.Ordens, domain.ServiceOrder{ID: int64(i), Numero: domain.FormatOrderNumber(int64(i)), Status: domain.StatusAguardando})
		snap.Produtos = append(snap.Produtos, domain.Product{ID: int64(i), Codigo: fmt.Sprintf("P%03d", i), Nome: fmt.Sprintf("Bateria Modelo%02d", i)})
	}
	return snap
}

// sectionLines counts the "- " lines that follow a section header.
func sectionLines(prompt, header string) int {
	i := strings.Index(prompt, header)
	if i < 0 {
		return -1
	}
	n := 0
	for _, line := range strings.Split(prompt[i:], "\n")[1:] {
		if !strings.HasPrefix(line, "- ") {
			break
		}
		n++
	}
	return n
}

func TestBuildPrompt_CategoryFilter(t *testing.T) {
	snap := bigSnapshot(20)

	p := buildPrompt("quais clientes temos?", snap)
	if got := sectionLines(p, "Clientes ("); got != itemsPerCategory {
		t.Errorf("clientes lines = %d, want %d", got, itemsPerCategory)
	}
	if strings.Contains(p, "Produtos (") || strings.Contains(p, "Ordens de serviço (") {
		t.Error("unrelated categories should be left out")
	}
	if !strings.Contains(p, "Totais:") || !strings.HasSuffix(p, "Pergunta: quais clientes temos?\nResposta:") {
		t.Error("prompt should carry totals and end with the question")
	}
}

func TestBuildPrompt_FallbackSample(t *testing.T) {
	p := buildPrompt("me conte algo", bigSnapshot(20))
	for _, header := range []string{"Clientes (", "Ordens de serviço (", "Produtos ("} {
		if got := sectionLines(p, header); got != fallbackItems {
			t.Errorf("%s lines = %d, want %d", header, got, fallbackItems)
		}
	}
}

func TestBuildPrompt_MentionedItemFirst(t *testing.T) {
	p := buildPrompt("qual o estoque da Bateria Modelo18?", bigSnapshot(20))
	i := strings.Index(p, "Produtos (")
	first := strings.Split(p[i:], "\n")[1]
	if !strings.HasPrefix(first, "- Bateria Modelo18 ") {
		t.Errorf("mentioned product should come first, got %q", first)
	}
}

func TestExtractData(t *testing.T) {
	snap := testSnapshot()
	tests := []struct {
		text string
		want *domain.ConsultaData
	}{
		{"qual o status da os 7?", &domain.ConsultaData{Tipo: PayloadOS, OS: &snap.Ordens[0]}},
		{"dados da Maria", &domain.ConsultaData{Tipo: PayloadCliente, Cliente: &snap.Clientes[0], Ordens: []domain.ServiceOrder{snap.Ordens[0]}}},
		{"quais OS estão prontas?", &domain.ConsultaData{Tipo: PayloadOrdens, Status: domain.StatusPronto, Ordens: []domain.ServiceOrder{snap.Ordens[1]}}},
		{"qual o faturamento?", &domain.ConsultaData{Tipo: PayloadFinanceiro, Financeiro: &snap.Totais}},
		{"produtos com estoque baixo", &domain.ConsultaData{Tipo: PayloadEstoqueBaixo, Produtos: []domain.Product{snap.Produtos[0]}}},
		{"olá, tudo bem?", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ExtractData(tt.text, snap)); diff != "" {
				t.Errorf("payload mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

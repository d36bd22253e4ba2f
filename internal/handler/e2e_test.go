package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/assistant"
	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/handler"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/cache"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/client"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/resilience"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/sqlstore"
	"github.com/boddenberg/oficina-assistant-go/internal/port"
	"github.com/boddenberg/oficina-assistant-go/internal/service"

	"go.uber.org/zap"
)

type stubLLM struct{ reply string }

func (s stubLLM) Complete(_ context.Context, _ string) (string, error) { return s.reply, nil }

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLLM(t, stubLLM{reply: "Resposta do modelo."})
}

func newTestServerWithLLM(t *testing.T, llm port.LLM) *testServer {
	t.Helper()
	store, err := sqlstore.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	c := &domain.Client{Nome: "Maria Silva", CPFCNPJ: "12345678901"}
	if _, err := store.CreateClient(ctx, c); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	o := &domain.ServiceOrder{ClienteID: c.ID, TipoAparelho: "Celular", MarcaModelo: "Samsung A10", ProblemaRelatado: "Tela quebrada", Status: domain.StatusEmReparo}
	if _, err := store.CreateOrder(ctx, o); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	snapshots := assistant.NewSnapshotSource(store,
		cache.NewTTL[*domain.ContextSnapshot](time.Minute, cache.WithoutJanitor()), 100, metrics, logger)
	bridge := assistant.NewBridge(llm, cache.NewFIFO[string](50, nil), metrics, logger)
	authSvc := service.NewAuthService(store, "e2e-secret", time.Hour, logger)
	if _, err := authSvc.CreateUser(ctx, &domain.CreateUserRequest{Usuario: "admin", Senha: "admin123"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	h := handler.NewRouter(handler.Services{
		Assistant: service.NewAssistant(snapshots, assistant.NewFlow(store, logger), bridge, metrics, logger),
		Solutions: service.NewSolutionService(store, store, store, logger),
		Catalog:   service.NewCatalogService(store),
		Auth:      authSvc,
		DB:        store,
	}, handler.Options{}, metrics, logger)

	ts := &testServer{t: t, handler: h}
	var login domain.LoginResponse
	if code := ts.do(http.MethodPost, "/auth/login", `{"usuario":"admin","senha":"admin123"}`, &login); code != http.StatusOK {
		t.Fatalf("login: status %d", code)
	}
	ts.token = login.AccessToken
	return ts
}

// do sends a request with the session token and decodes the body into out.
func (s *testServer) do(method, path, body string, out any) int {
	s.t.Helper()
	return s.doWithToken(method, path, body, s.token, out)
}

func (s *testServer) doWithToken(method, path, body, token string, out any) int {
	s.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type apiError struct {
	Erro     string `json:"erro"`
	Mensagem string `json:"mensagem"`
}

func TestE2E_HealthzPingsDatabase(t *testing.T) {
	s := newTestServer(t)

	var health domain.HealthStatus
	if code := s.do(http.MethodGet, "/healthz", "", &health); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if health.Status != "healthy" || len(health.Services) != 2 {
		t.Errorf("unexpected health %+v", health)
	}
}

func TestE2E_ConsultaRequiresToken(t *testing.T) {
	s := newTestServer(t)
	body := `{"consulta":"oi"}`

	var e apiError
	if code := s.doWithToken(http.MethodPost, "/consulta", body, "", &e); code != http.StatusUnauthorized {
		t.Errorf("no token: status %d", code)
	}
	if code := s.doWithToken(http.MethodPost, "/consulta", body, "garbage", &e); code != http.StatusUnauthorized {
		t.Errorf("invalid token: status %d", code)
	}

	var resp domain.ConsultaResponse
	if code := s.do(http.MethodPost, "/consulta", body, &resp); code != http.StatusOK {
		t.Fatalf("valid token: status %d", code)
	}
	if resp.Resposta == "" || resp.Consulta != "oi" || resp.ConversaID == "" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestE2E_ConsultaDeleteFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	var first struct {
		Resposta             string          `json:"resposta"`
		EstadoConversacional json.RawMessage `json:"estado_conversacional"`
	}
	if code := s.do(http.MethodPost, "/consulta", `{"consulta":"apague a os 1"}`, &first); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}

	body, _ := json.Marshal(map[string]any{"consulta": "cancelar", "estado_conversacional": first.EstadoConversacional})
	var second domain.ConsultaResponse
	if code := s.do(http.MethodPost, "/consulta", string(body), &second); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if second.EstadoConversacional != nil || second.Acao != nil {
		t.Errorf("expected the flow to be cancelled, got %+v", second)
	}

	var order domain.ServiceOrder
	if code := s.do(http.MethodGet, "/api/ordens/1", "", &order); code != http.StatusOK || order.Numero != "#OS0001" {
		t.Errorf("order should still exist: %d %+v", code, order)
	}
}

func TestE2E_ConsultaEmpty(t *testing.T) {
	s := newTestServer(t)

	var e apiError
	if code := s.do(http.MethodPost, "/consulta", `{"consulta":""}`, &e); code != http.StatusBadRequest {
		t.Errorf("status %d", code)
	}
}

func TestE2E_ResumoAndDiagnostico(t *testing.T) {
	s := newTestServer(t)

	var e apiError
	if code := s.do(http.MethodPost, "/resumo", `{"problema":""}`, &e); code != http.StatusBadRequest {
		t.Fatalf("status %d", code)
	}
	if e.Erro != "Campo obrigatório" || e.Mensagem != "O campo 'problema' é obrigatório" {
		t.Errorf("unexpected error body %+v", e)
	}

	var resumo domain.ResumoResponse
	if code := s.do(http.MethodPost, "/resumo", `{"problema":"não liga"}`, &resumo); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resumo.Resumo != "Resposta do modelo." || resumo.ProblemaOriginal != "não liga" {
		t.Errorf("unexpected resumo %+v", resumo)
	}

	if code := s.do(http.MethodPost, "/diagnostico", `{"tipoAparelho":"Notebook"}`, &e); code != http.StatusBadRequest || e.Erro != "Campos obrigatórios" {
		t.Errorf("diagnostico missing fields: %d %+v", code, e)
	}
}

const solutionBody = `{
	"os_id": 1, "numero": "#OS0001", "data": "2024-05-02", "idcliente": 1,
	"descricao_problema": "Tela quebrada", "marca": "Samsung", "tipo": "Celular",
	"data_abertura": "2024-05-01T10:00:00Z"
}`

func TestE2E_Solutions(t *testing.T) {
	s := newTestServer(t)

	var created domain.MessageResponse
	if code := s.do(http.MethodPost, "/api/solucoes/", solutionBody, &created); code != http.StatusCreated {
		t.Fatalf("create: status %d", code)
	}
	if created.ID <= 0 || created.Mensagem != "Solução criada com sucesso" {
		t.Errorf("unexpected create response %+v", created)
	}

	var e apiError
	if code := s.do(http.MethodPost, "/api/solucoes/", solutionBody, &e); code != http.StatusConflict || e.Erro != "Já existe uma solução para esta OS" {
		t.Errorf("duplicate: %d %+v", code, e)
	}

	missing := `{"os_id": 1, "numero": "#OS0001", "data": "2024-05-02", "idcliente": 1, "marca": "x", "tipo": "y", "data_abertura": "2024-05-01"}`
	if code := s.do(http.MethodPost, "/api/solucoes/", missing, &e); code != http.StatusBadRequest || e.Erro != "Campo obrigatório: descricao_problema" {
		t.Errorf("missing field: %d %+v", code, e)
	}

	badDate := `{"os_id": 1, "data": "02/05/2024"}`
	if code := s.do(http.MethodPost, "/api/solucoes/", badDate, &e); code != http.StatusBadRequest {
		t.Errorf("bad date: status %d", code)
	}

	var sol domain.Solution
	path := "/api/solucoes/" + jsonNumber(created.ID)
	if code := s.do(http.MethodGet, path, "", &sol); code != http.StatusOK {
		t.Fatalf("get: status %d", code)
	}
	if sol.DataAbertura.String() != "2024-05-01" || sol.NomeCliente == nil || *sol.NomeCliente != "Maria Silva" {
		t.Errorf("unexpected solution %+v", sol)
	}

	var list []domain.Solution
	if code := s.do(http.MethodGet, "/api/solucoes/os/1", "", &list); code != http.StatusOK || len(list) != 1 {
		t.Errorf("by os: %d, %d items", code, len(list))
	}
	if code := s.do(http.MethodGet, "/api/solucoes/os/99", "", &e); code != http.StatusNotFound {
		t.Errorf("unknown os: status %d", code)
	}

	var msg domain.MessageResponse
	if code := s.do(http.MethodPut, path, `{"solucoes_ia":"Troca do display"}`, &msg); code != http.StatusOK || msg.Mensagem != "Solução atualizada com sucesso" {
		t.Errorf("update: %d %+v", code, msg)
	}
	if code := s.do(http.MethodDelete, path, "", &msg); code != http.StatusOK || msg.Mensagem != "Solução removida com sucesso" {
		t.Errorf("delete: %d %+v", code, msg)
	}
	if code := s.do(http.MethodGet, path, "", &e); code != http.StatusNotFound || e.Erro != "Solução não encontrada" {
		t.Errorf("after delete: %d %+v", code, e)
	}
}

func TestE2E_CatalogLimit(t *testing.T) {
	s := newTestServer(t)

	var list domain.ListResponse[domain.Client]
	if code := s.do(http.MethodGet, "/api/clientes?limit=10", "", &list); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if list.Total != 1 || list.Limit != 10 || list.Data[0].Nome != "Maria Silva" {
		t.Errorf("unexpected list %+v", list)
	}

	var e apiError
	for _, q := range []string{"0", "101", "abc"} {
		if code := s.do(http.MethodGet, "/api/produtos?limit="+q, "", &e); code != http.StatusBadRequest {
			t.Errorf("limit=%s: status %d", q, code)
		}
	}
	if code := s.do(http.MethodGet, "/api/clientes/abc", "", &e); code != http.StatusBadRequest {
		t.Errorf("bad id: status %d", code)
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// TestE2E_ConsultaThroughMistralAPI runs a question through the real Mistral
// adapter pointed at a mock completion endpoint.
func TestE2E_ConsultaThroughMistralAPI(t *testing.T) {
	var hits atomic.Int32
	prompts := make(chan string, 4)
	mistral := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) == 1 {
			prompts <- req.Messages[0].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  A OS #OS0001 está em reparo.  "}}],"usage":{"prompt_tokens":120,"completion_tokens":9}}`))
	}))
	defer mistral.Close()

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 2}
	llm := client.NewMistralClient(mistral.Client(), mistral.URL, "test-key", "mistral-small",
		resilience.NewCircuitBreaker("mistral-e2e", zap.NewNop()), cfg, nil)
	s := newTestServerWithLLM(t, llm)

	var resp domain.ConsultaResponse
	if code := s.do(http.MethodPost, "/consulta", `{"consulta":"qual o status da os 1?"}`, &resp); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if resp.Resposta != "A OS #OS0001 está em reparo." {
		t.Errorf("unexpected resposta %q", resp.Resposta)
	}
	if hits.Load() != 1 {
		t.Errorf("expected one completion call, got %d", hits.Load())
	}
	gotPrompt := <-prompts
	if !strings.Contains(gotPrompt, "Maria Silva") || !strings.Contains(gotPrompt, "qual o status da os 1?") {
		t.Errorf("prompt should carry the snapshot and the question:\n%s", gotPrompt)
	}
}

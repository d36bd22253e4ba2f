package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustClient(t *testing.T, s *Store, nome, doc string) *domain.Client {
	t.Helper()
	c := &domain.Client{Nome: nome, CPFCNPJ: doc, Telefone: "11999990000"}
	if _, err := s.CreateClient(context.Background(), c); err != nil {
		t.Fatalf("CreateClient(%s): %v", nome, err)
	}
	return c
}

func mustOrder(t *testing.T, s *Store, clientID int64, status domain.OrderStatus, valor float64) *domain.ServiceOrder {
	t.Helper()
	o := &domain.ServiceOrder{ClienteID: clientID, TipoAparelho: "Notebook", MarcaModelo: "Dell Inspiron", ProblemaRelatado: "não liga", Status: status, ValorOrcamento: valor}
	if _, err := s.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func TestMigrationsIdempotent(t *testing.T) {
	path := t.TempDir() + "/oficina.db"

	s1, err := Open(path, nil)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if diff := cmp.Diff(v1, v2); diff != "" {
		t.Errorf("migrations changed on reopen (-first +second):\n%s", diff)
	}
	if len(v1) == 0 || v1[0] != 1 {
		t.Errorf("expected migration 1 applied, got %v", v1)
	}
}

func TestClients_CRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := mustClient(t, s, "Maria Souza", "12345678901")

	got, err := s.GetClient(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if diff := cmp.Diff(c, got, cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("client mismatch (-want +got):\n%s", diff)
	}

	if err := s.UpdateClient(ctx, c.ID, map[string]any{"telefone": "11988887777"}); err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}
	got, _ = s.GetClient(ctx, c.ID)
	if got.Telefone != "11988887777" {
		t.Errorf("expected updated phone, got %q", got.Telefone)
	}

	found, err := s.FindClientByDocument(ctx, "12345678901")
	if err != nil || found == nil || found.ID != c.ID {
		t.Fatalf("FindClientByDocument: %v %+v", err, found)
	}
	if none, err := s.FindClientByDocument(ctx, "000"); err != nil || none != nil {
		t.Errorf("expected nil for unknown document, got %+v %v", none, err)
	}

	if err := s.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	var nf *domain.ErrNotFound
	if _, err := s.GetClient(ctx, c.ID); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClients_DuplicateDocumentIsConflict(t *testing.T) {
	s := openTestStore(t)
	mustClient(t, s, "Ana", "12345678901")

	_, err := s.CreateClient(context.Background(), &domain.Client{Nome: "Outra Ana", CPFCNPJ: "12345678901"})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// empty documents never collide
	mustClient(t, s, "Sem doc 1", "")
	mustClient(t, s, "Sem doc 2", "")
}

func TestClients_DeleteWithOrdersIsConflict(t *testing.T) {
	s := openTestStore(t)
	c := mustClient(t, s, "João", "")
	mustOrder(t, s, c.ID, domain.StatusAguardando, 0)

	var conflict *domain.ErrConflict
	if err := s.DeleteClient(context.Background(), c.ID); !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict from foreign key, got %v", err)
	}
}

func TestOrders_NumberAssignedFromID(t *testing.T) {
	s := openTestStore(t)
	c := mustClient(t, s, "João", "")

	o1 := mustOrder(t, s, c.ID, "", 0)
	o2 := mustOrder(t, s, c.ID, domain.StatusPronto, 150)

	if o1.Numero != "#OS0001" || o2.Numero != "#OS0002" {
		t.Errorf("unexpected numbers %q %q", o1.Numero, o2.Numero)
	}
	if o1.Status != domain.StatusAguardando {
		t.Errorf("expected default status aguardando, got %q", o1.Status)
	}

	got, err := s.GetOrder(context.Background(), o2.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.ClienteNome != "João" || got.Numero != "#OS0002" {
		t.Errorf("unexpected order %+v", got)
	}

	list, err := s.ListOrders(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(list) != 1 || list[0].ID != o2.ID {
		t.Errorf("expected newest order only, got %+v", list)
	}
}

func TestOrders_UnknownClientIsConflict(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateOrder(context.Background(), &domain.ServiceOrder{ClienteID: 999})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestOrders_UpdateStatusValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := mustClient(t, s, "João", "")
	o := mustOrder(t, s, c.ID, domain.StatusEmReparo, 0)

	if err := s.UpdateOrder(ctx, o.ID, map[string]any{"status": domain.StatusPronto, "valor_orcamento": 250.5}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != domain.StatusPronto || got.ValorOrcamento != 250.5 {
		t.Errorf("unexpected order after update: %+v", got)
	}

	var validation *domain.ErrValidation
	if err := s.UpdateOrder(ctx, o.ID, map[string]any{"status": "voando"}); !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for bad status, got %v", err)
	}
	if err := s.UpdateOrder(ctx, o.ID, map[string]any{"numero": "#OS9999"}); !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for non-updatable column, got %v", err)
	}

	var nf *domain.ErrNotFound
	if err := s.UpdateOrder(ctx, 404, map[string]any{"status": "pronto"}); !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProducts_CodeIsUniqueCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &domain.Product{Codigo: "TEC-01", Nome: "Teclado", Quantidade: 3, EstoqueMinimo: 5, PrecoVenda: 89.9}
	if _, err := s.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	_, err := s.CreateProduct(ctx, &domain.Product{Codigo: "tec-01", Nome: "Outro"})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.Message != "Já existe um produto com este código" {
		t.Fatalf("expected product code conflict, got %v", err)
	}

	if err := s.UpdateProduct(ctx, p.ID, map[string]any{"quantidade": 10}); err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	got, _ := s.GetProduct(ctx, p.ID)
	if got.Quantidade != 10 || got.LowStock() {
		t.Errorf("unexpected product %+v", got)
	}

	var validation *domain.ErrValidation
	if err := s.UpdateProduct(ctx, p.ID, map[string]any{"quantidade": 2.5}); !errors.As(err, &validation) {
		t.Errorf("expected ErrValidation for fractional quantity, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	s := openTestStore(t)
	c := mustClient(t, s, "João", "")
	mustOrder(t, s, c.ID, domain.StatusEntregue, 100)
	mustOrder(t, s, c.ID, domain.StatusEntregue, 50.5)
	mustOrder(t, s, c.ID, domain.StatusPronto, 999)

	got, err := s.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	want := domain.SnapshotTotals{TotalClientes: 1, TotalOS: 3, FaturamentoTotal: 150.5, OSEntregues: 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestTotals_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if got != (domain.SnapshotTotals{}) {
		t.Errorf("expected zero totals, got %+v", got)
	}
}

func TestSolutions_UniquePerOS(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := mustClient(t, s, "Carla Dias", "")
	o := mustOrder(t, s, c.ID, domain.StatusEntregue, 80)

	data, _ := domain.ParseDate("2024-05-02")
	diag := "Fonte queimada"
	sol := &domain.Solution{
		OSID: o.ID, Numero: o.Numero, Data: data, IDCliente: c.ID,
		DescricaoProblema: "não liga", Marca: "Dell", Tipo: "Notebook",
		DataAbertura: data, DiagnosticoIA: &diag,
	}
	id, err := s.CreateSolution(ctx, sol)
	if err != nil {
		t.Fatalf("CreateSolution: %v", err)
	}

	got, err := s.GetSolution(ctx, id)
	if err != nil {
		t.Fatalf("GetSolution: %v", err)
	}
	if got.NomeCliente == nil || *got.NomeCliente != "Carla Dias" {
		t.Errorf("expected joined client name, got %v", got.NomeCliente)
	}
	if got.Data.String() != "2024-05-02" || got.DataFechamento != nil {
		t.Errorf("unexpected dates %v %v", got.Data, got.DataFechamento)
	}

	dup := *sol
	_, err = s.CreateSolution(ctx, &dup)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.Message != "Já existe uma solução para esta OS" {
		t.Fatalf("expected duplicate solution conflict, got %v", err)
	}

	fechamento, _ := domain.ParseDate("2024-05-10")
	marca := "Dell Inc"
	if err := s.UpdateSolution(ctx, id, &domain.SolutionInput{Marca: &marca, DataFechamento: &fechamento}); err != nil {
		t.Fatalf("UpdateSolution: %v", err)
	}
	byOS, err := s.ListSolutionsByOS(ctx, o.ID)
	if err != nil || len(byOS) != 1 {
		t.Fatalf("ListSolutionsByOS: %v %d", err, len(byOS))
	}
	if byOS[0].Marca != "Dell Inc" || byOS[0].DataFechamento == nil || byOS[0].DataFechamento.String() != "2024-05-10" {
		t.Errorf("update not applied: %+v", byOS[0])
	}

	if err := s.DeleteSolution(ctx, id); err != nil {
		t.Fatalf("DeleteSolution: %v", err)
	}
	var nf *domain.ErrNotFound
	if err := s.DeleteSolution(ctx, id); !errors.As(err, &nf) || nf.Error() != "Solução não encontrada" {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if u, err := s.GetUserByUsername(ctx, "admin"); err != nil || u != nil {
		t.Fatalf("expected nil user, got %+v %v", u, err)
	}
	if _, err := s.CreateUser(ctx, &domain.User{Usuario: "admin", Nome: "Admin", SenhaHash: "hash"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := s.GetUserByUsername(ctx, "admin")
	if err != nil || u == nil || u.SenhaHash != "hash" {
		t.Fatalf("unexpected user %+v %v", u, err)
	}

	_, err = s.CreateUser(ctx, &domain.User{Usuario: "admin", SenhaHash: "x"})
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Errorf("expected ErrConflict for duplicate user, got %v", err)
	}
}

package assistant

import (
	"context"
	"sync"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
)

// fakeStore is an in-memory port.EntityStore.
type fakeStore struct {
	mu       sync.Mutex
	clients  []domain.Client
	orders   []domain.ServiceOrder
	products []domain.Product
	totals   domain.SnapshotTotals

	nextID   int64
	writeErr error
	listErr  error

	listCalls  int
	beforeList func() // runs at the start of ListClients, outside the lock
	updates    []map[string]any
	deleted   []int64
}

func newFakeStore(snap *domain.ContextSnapshot) *fakeStore {
	return &fakeStore{
		clients:  append([]domain.Client(nil), snap.Clientes...),
		orders:   append([]domain.ServiceOrder(nil), snap.Ordens...),
		products: append([]domain.Product(nil), snap.Produtos...),
		totals:   snap.Totais,
		nextID:   100,
	}
}

func (s *fakeStore) ListClients(_ context.Context, _ int) ([]domain.Client, error) {
	if s.beforeList != nil {
		s.beforeList()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return append([]domain.Client(nil), s.clients...), s.listErr
}

func (s *fakeStore) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "cliente"}
}

func (s *fakeStore) FindClientByDocument(_ context.Context, digits string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.CPFCNPJ == digits {
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateClient(_ context.Context, c *domain.Client) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.nextID++
	c.ID = s.nextID
	s.clients = append(s.clients, *c)
	return c.ID, nil
}

func (s *fakeStore) UpdateClient(_ context.Context, id int64, updates map[string]any) error {
	return s.recordUpdate(updates)
}

func (s *fakeStore) DeleteClient(_ context.Context, id int64) error {
	return s.recordDelete(id)
}

func (s *fakeStore) ListOrders(_ context.Context, _ int) ([]domain.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ServiceOrder(nil), s.orders...), s.listErr
}

func (s *fakeStore) GetOrder(_ context.Context, id int64) (*domain.ServiceOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "os"}
}

func (s *fakeStore) CreateOrder(_ context.Context, o *domain.ServiceOrder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.nextID++
	o.ID = s.nextID
	o.Numero = domain.FormatOrderNumber(o.ID)
	s.orders = append(s.orders, *o)
	return o.ID, nil
}

func (s *fakeStore) UpdateOrder(_ context.Context, id int64, updates map[string]any) error {
	return s.recordUpdate(updates)
}

func (s *fakeStore) DeleteOrder(_ context.Context, id int64) error {
	return s.recordDelete(id)
}

func (s *fakeStore) ListProducts(_ context.Context, _ int) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Product(nil), s.products...), s.listErr
}

func (s *fakeStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "produto"}
}

func (s *fakeStore) CreateProduct(_ context.Context, p *domain.Product) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.nextID++
	p.ID = s.nextID
	s.products = append(s.products, *p)
	return p.ID, nil
}

func (s *fakeStore) UpdateProduct(_ context.Context, id int64, updates map[string]any) error {
	return s.recordUpdate(updates)
}

func (s *fakeStore) DeleteProduct(_ context.Context, id int64) error {
	return s.recordDelete(id)
}

func (s *fakeStore) Totals(_ context.Context) (domain.SnapshotTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals, s.listErr
}

func (s *fakeStore) recordUpdate(updates map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.updates = append(s.updates, updates)
	return nil
}

func (s *fakeStore) recordDelete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

// fakeLLM returns a fixed reply (or error) and records the prompts it saw.
type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (l *fakeLLM) Complete(_ context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	if l.err != nil {
		return "", l.err
	}
	return l.reply, nil
}

func (l *fakeLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

func testSnapshot() *domain.ContextSnapshot {
	return &domain.ContextSnapshot{
		Clientes: []domain.Client{
			{ID: 1, Nome: "Maria Silva", CPFCNPJ: "12345678901", Telefone: "11987654321"},
			{ID: 2, Nome: "João Souza", CPFCNPJ: "98765432100", Telefone: "11911112222"},
		},
		Ordens: []domain.ServiceOrder{
			{ID: 7, Numero: "#OS0007", ClienteID: 1, ClienteNome: "Maria Silva", TipoAparelho: "Celular",
				MarcaModelo: "Samsung A10", ProblemaRelatado: "Tela quebrada", Status: domain.StatusEmReparo, ValorOrcamento: 350},
			{ID: 3, Numero: "#OS0003", ClienteID: 2, ClienteNome: "João Souza", TipoAparelho: "Notebook",
				MarcaModelo: "Dell Inspiron", ProblemaRelatado: "Não liga", Status: domain.StatusPronto, ValorOrcamento: 500},
		},
		Produtos: []domain.Product{
			{ID: 10, Codigo: "TEC-01", Nome: "Teclado", Quantidade: 2, EstoqueMinimo: 5, PrecoVenda: 89.9},
			{ID: 11, Codigo: "MOU-02", Nome: "Mouse sem fio", Quantidade: 20, EstoqueMinimo: 3, PrecoVenda: 59.9},
		},
		Totais: domain.SnapshotTotals{TotalClientes: 2, TotalOS: 2, FaturamentoTotal: 1200, OSEntregues: 3},
	}
}

// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
)

// ClientStore persists clients. Get returns *domain.ErrNotFound for unknown ids.
type ClientStore interface {
	ListClients(ctx context.Context, limit int) ([]domain.Client, error)
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	// FindClientByDocument returns nil, nil when no client has the given CPF/CNPJ digits.
	FindClientByDocument(ctx context.Context, digits string) (*domain.Client, error)
	CreateClient(ctx context.Context, c *domain.Client) (int64, error)
	UpdateClient(ctx context.Context, id int64, updates map[string]any) error
	DeleteClient(ctx context.Context, id int64) error
}

// OrderStore persists service orders. CreateOrder assigns the #OS number.
type OrderStore interface {
	ListOrders(ctx context.Context, limit int) ([]domain.ServiceOrder, error)
	GetOrder(ctx context.Context, id int64) (*domain.ServiceOrder, error)
	CreateOrder(ctx context.Context, o *domain.ServiceOrder) (int64, error)
	UpdateOrder(ctx context.Context, id int64, updates map[string]any) error
	DeleteOrder(ctx context.Context, id int64) error
}

// ProductStore persists inventory products.
type ProductStore interface {
	ListProducts(ctx context.Context, limit int) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, updates map[string]any) error
	DeleteProduct(ctx context.Context, id int64) error
}

// TotalsReader computes aggregates over the whole store.
type TotalsReader interface {
	Totals(ctx context.Context) (domain.SnapshotTotals, error)
}

// EntityStore is everything the assistant reads and mutates.
type EntityStore interface {
	ClientStore
	OrderStore
	ProductStore
	TotalsReader
}

// SolutionStore persists solutions. Create/Update return *domain.ErrConflict when
// the OS already has a solution.
type SolutionStore interface {
	ListSolutions(ctx context.Context) ([]domain.Solution, error)
	GetSolution(ctx context.Context, id int64) (*domain.Solution, error)
	ListSolutionsByOS(ctx context.Context, osID int64) ([]domain.Solution, error)
	CreateSolution(ctx context.Context, s *domain.Solution) (int64, error)
	UpdateSolution(ctx context.Context, id int64, in *domain.SolutionInput) error
	DeleteSolution(ctx context.Context, id int64) error
}

// UserStore persists operators.
type UserStore interface {
	// GetUserByUsername returns nil, nil when the user does not exist.
	GetUserByUsername(ctx context.Context, usuario string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) (int64, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LLM sends a single user message to a chat-completion model and returns the reply text.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Cache is the key/value contract shared by the TTL and FIFO caches.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

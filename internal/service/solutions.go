package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var solutionsTracer = otel.Tracer("service/solutions")

// SolutionService holds the rules of the solutions log: required fields and
// references to existing orders and clients.
type SolutionService struct {
	solutions port.SolutionStore
	orders    port.OrderStore
	clients   port.ClientStore
	logger    *zap.Logger
}

func NewSolutionService(solutions port.SolutionStore, orders port.OrderStore, clients port.ClientStore, logger *zap.Logger) *SolutionService {
	return &SolutionService{
		solutions: solutions,
		orders:    orders,
		clients:   clients,
		logger:    logger,
	}
}

func (s *SolutionService) List(ctx context.Context) ([]domain.Solution, error) {
	ctx, span := solutionsTracer.Start(ctx, "SolutionService.List")
	defer span.End()

	return s.solutions.ListSolutions(ctx)
}

func (s *SolutionService) Get(ctx context.Context, id int64) (*domain.Solution, error) {
	ctx, span := solutionsTracer.Start(ctx, "SolutionService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("solucao.id", id))

	return s.solutions.GetSolution(ctx, id)
}

// ListByOS returns the solutions of an order; the order itself must exist.
func (s *SolutionService) ListByOS(ctx context.Context, osID int64) ([]domain.Solution, error) {
	ctx, span := solutionsTracer.Start(ctx, "SolutionService.ListByOS")
	defer span.End()
	span.SetAttributes(attribute.Int64("os.id", osID))

	if _, err := s.orders.GetOrder(ctx, osID); err != nil {
		return nil, err
	}
	return s.solutions.ListSolutionsByOS(ctx, osID)
}

// Create validates the required fields in their fixed order and reports the
// first one missing.
func (s *SolutionService) Create(ctx context.Context, in *domain.SolutionInput) (int64, error) {
	ctx, span := solutionsTracer.Start(ctx, "SolutionService.Create")
	defer span.End()

	if campo := firstMissing(in); campo != "" {
		return 0, &domain.ErrValidation{Field: campo, Message: "Campo obrigatório: " + campo}
	}
	span.SetAttributes(attribute.Int64("os.id", *in.OSID))

	if err := s.checkRefs(ctx, in.OSID, in.IDCliente); err != nil {
		return 0, err
	}

	sol := &domain.Solution{
		OSID:              *in.OSID,
		Numero:            *in.Numero,
		Data:              *in.Data,
		IDCliente:         *in.IDCliente,
		DescricaoProblema: *in.DescricaoProblema,
		Marca:             *in.Marca,
		Tipo:              *in.Tipo,
		DataAbertura:      *in.DataAbertura,
		DataFechamento:    in.DataFechamento,
		DiagnosticoIA:     in.DiagnosticoIA,
		SolucoesIA:        in.SolucoesIA,
	}
	id, err := s.solutions.CreateSolution(ctx, sol)
	if err != nil {
		return 0, fmt.Errorf("create solucao: %w", err)
	}

	s.logger.Info("solution created",
		zap.Int64("id", id),
		zap.Int64("os_id", sol.OSID),
	)
	return id, nil
}

// Update applies a partial update. A changed os_id or idcliente must point to
// an existing record.
func (s *SolutionService) Update(ctx context.Context, id int64, in *domain.SolutionInput) error {
	ctx, span := solutionsTracer.Start(ctx, "SolutionService.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("solucao.id", id))

	if _, err := s.solutions.GetSolution(ctx, id); err != nil {
		return err
	}
	if err := s.checkRefs(ctx, in.OSID, in.IDCliente); err != nil {
		return err
	}
	if err := s.solutions.UpdateSolution(ctx, id, in); err != nil {
		return fmt.Errorf("update solucao: %w", err)
	}
	return nil
}

func (s *SolutionService) Delete(ctx context.Context, id int64) error {
	ctx, span := solutionsTracer.Start(ctx, "SolutionService.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("solucao.id", id))

	if err := s.solutions.DeleteSolution(ctx, id); err != nil {
		return err
	}
	s.logger.Info("solution deleted", zap.Int64("id", id))
	return nil
}

func (s *SolutionService) checkRefs(ctx context.Context, osID, clientID *int64) error {
	if osID != nil {
		if _, err := s.orders.GetOrder(ctx, *osID); err != nil {
			return err
		}
	}
	if clientID != nil {
		if _, err := s.clients.GetClient(ctx, *clientID); err != nil {
			return err
		}
	}
	return nil
}

func firstMissing(in *domain.SolutionInput) string {
	required := []struct {
		campo   string
		present bool
	}{
		{"os_id", in.OSID != nil},
		{"numero", in.Numero != nil},
		{"data", in.Data != nil},
		{"idcliente", in.IDCliente != nil},
		{"descricao_problema", in.DescricaoProblema != nil},
		{"marca", in.Marca != nil},
		{"tipo", in.Tipo != nil},
		{"data_abertura", in.DataAbertura != nil},
	}
	for _, r := range required {
		if !r.present {
			return r.campo
		}
	}
	return ""
}

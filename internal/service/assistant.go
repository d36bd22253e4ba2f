// Package service holds the use cases behind the HTTP handlers: the
// assistant turn, solutions, read-only catalog and operator auth.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/oficina-assistant-go/internal/assistant"
	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/infra/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/assistant")

// Assistant orchestrates one conversational turn: snapshot, classification,
// flow or LLM answer, and snapshot invalidation after confirmed mutations.
type Assistant struct {
	snapshots *assistant.SnapshotSource
	flow      *assistant.Flow
	bridge    *assistant.Bridge
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAssistant creates the assistant service with all dependencies injected.
func NewAssistant(
	snapshots *assistant.SnapshotSource,
	flow *assistant.Flow,
	bridge *assistant.Bridge,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	return &Assistant{
		snapshots: snapshots,
		flow:      flow,
		bridge:    bridge,
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// POST /consulta
// ============================================================

// Consult answers a free-text message. Only an empty message is an error;
// every other failure is answered in-band so the chat never breaks.
func (a *Assistant) Consult(ctx context.Context, req *domain.ConsultaRequest) (*domain.ConsultaResponse, error) {
	text := strings.TrimSpace(req.Consulta)
	if text == "" {
		return nil, &domain.ErrValidation{
			Field:   "consulta",
			Message: "Campo obrigatório",
			Detail:  "O campo 'consulta' é obrigatório",
		}
	}

	ctx, span := tracer.Start(ctx, "Assistant.Consult")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("consulta", time.Since(start))
	}()

	conversaID := req.ConversaID
	if conversaID == "" {
		conversaID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("conversa.id", conversaID))

	resp := &domain.ConsultaResponse{Consulta: text, ConversaID: conversaID}
	state := domain.ParseConversationState(req.EstadoConversacional)

	snap, err := a.snapshots.Get(ctx)
	if err != nil {
		a.logger.Error("consulta: snapshot unavailable",
			zap.String("conversa_id", conversaID),
			zap.Error(err),
		)
		a.metrics.IncrConsulta("error")
		resp.Resposta = assistant.ApologyText
		resp.EstadoConversacional = state
		return resp, nil
	}

	intent := assistant.Classify(text, state, snap)
	a.metrics.IncrIntent(string(intent.Kind))
	span.SetAttributes(attribute.String("intent", string(intent.Kind)))

	var reply assistant.Reply
	switch intent.Kind {
	case assistant.IntentContinuation:
		reply = a.flow.Continue(ctx, text, state, snap)
	case assistant.IntentChitchat:
		reply = assistant.Reply{Text: intent.Reply}
	case assistant.IntentDeleteOrEdit:
		if intent.Op == assistant.OpDelete {
			reply = a.flow.StartDelete(intent.Match)
		} else {
			reply = a.flow.StartEdit(text, intent.Match)
		}
	case assistant.IntentCreate:
		reply = a.flow.StartCreate(intent.Entity)
	default:
		answer, data := a.bridge.Answer(ctx, text, snap)
		reply = assistant.Reply{Text: answer}
		resp.Dados = data
	}

	if reply.Acao != nil {
		a.snapshots.Invalidate()
		a.metrics.IncrMutation(string(reply.Acao.Entidade), reply.Acao.Tipo)
		a.logger.Info("consulta: mutation committed",
			zap.String("conversa_id", conversaID),
			zap.String("tipo", reply.Acao.Tipo),
			zap.String("entidade", string(reply.Acao.Entidade)),
			zap.Int64("id", reply.Acao.ID),
		)
	}

	a.metrics.IncrConsulta("success")
	resp.Resposta = reply.Text
	resp.EstadoConversacional = reply.State
	resp.Acao = reply.Acao
	return resp, nil
}

// ============================================================
// POST /resumo, POST /diagnostico
// ============================================================

func (a *Assistant) Summarize(ctx context.Context, req *domain.ResumoRequest) (*domain.ResumoResponse, error) {
	problema := strings.TrimSpace(req.Problema)
	if problema == "" {
		return nil, &domain.ErrValidation{
			Field:   "problema",
			Message: "Campo obrigatório",
			Detail:  "O campo 'problema' é obrigatório",
		}
	}

	ctx, span := tracer.Start(ctx, "Assistant.Summarize")
	defer span.End()

	return &domain.ResumoResponse{
		Resumo:           a.bridge.Summarize(ctx, problema),
		ProblemaOriginal: problema,
	}, nil
}

func (a *Assistant) Diagnose(ctx context.Context, req *domain.DiagnosticoRequest) (*domain.DiagnosticoResponse, error) {
	tipo := strings.TrimSpace(req.TipoAparelho)
	modelo := strings.TrimSpace(req.MarcaModelo)
	problema := strings.TrimSpace(req.Problema)
	if tipo == "" || modelo == "" || problema == "" {
		return nil, &domain.ErrValidation{
			Message: "Campos obrigatórios",
			Detail:  "Os campos 'tipoAparelho', 'marcaModelo' e 'problema' são obrigatórios",
		}
	}

	ctx, span := tracer.Start(ctx, "Assistant.Diagnose")
	defer span.End()
	span.SetAttributes(attribute.String("aparelho", tipo))

	return &domain.DiagnosticoResponse{
		Diagnostico:  a.bridge.Diagnose(ctx, tipo, modelo, problema),
		TipoAparelho: tipo,
		MarcaModelo:  modelo,
		Problema:     problema,
	}, nil
}

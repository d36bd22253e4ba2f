package domain

import (
	"encoding/json"
	"time"
)

// ============================================================
// Snapshot de contexto do assistente
// ============================================================

// ContextSnapshot is a bounded read-only copy of store data used by the assistant.
type ContextSnapshot struct {
	Clientes []Client       `json:"clientes"`
	Ordens   []ServiceOrder `json:"ordens"`
	Produtos []Product      `json:"produtos"`
	Totais   SnapshotTotals `json:"totais"`
	GeradoEm time.Time      `json:"gerado_em"`
}

// SnapshotTotals are aggregates computed over the whole store, not just the bounded lists.
type SnapshotTotals struct {
	TotalClientes    int     `json:"total_clientes"`
	TotalOS          int     `json:"total_os"`
	FaturamentoTotal float64 `json:"faturamento_total"`
	OSEntregues      int     `json:"os_entregues"`
}

// ClientByID returns the client with the given id from the snapshot.
func (s *ContextSnapshot) ClientByID(id int64) (Client, bool) {
	for _, c := range s.Clientes {
		if c.ID == id {
			return c, true
		}
	}
	return Client{}, false
}

// OrdersByClient returns the snapshot orders that belong to clientID.
func (s *ContextSnapshot) OrdersByClient(clientID int64) []ServiceOrder {
	var out []ServiceOrder
	for _, o := range s.Ordens {
		if o.ClienteID == clientID {
			out = append(out, o)
		}
	}
	return out
}

// ============================================================
// Estado conversacional
// ============================================================

// EntityType names the kind of record the assistant operates on.
type EntityType string

const (
	EntityCliente EntityType = "cliente"
	EntityOS      EntityType = "os"
	EntityProduto EntityType = "produto"
)

// Mode is the active multi-turn flow.
type Mode string

const (
	ModeCriandoCliente      Mode = "criando_cliente"
	ModeCriandoOS           Mode = "criando_os"
	ModeCriandoProduto      Mode = "criando_produto"
	ModeConfirmandoExclusao Mode = "confirmando_exclusao"
	ModeEditando            Mode = "editando"
)

// Step is the field or gate the active flow is waiting for.
type Step string

const (
	StepNome          Step = "nome"
	StepCPFCNPJ       Step = "cpf_cnpj"
	StepTelefone      Step = "telefone"
	StepEmail         Step = "email"
	StepEndereco      Step = "endereco"
	StepObservacoes   Step = "observacoes"
	StepCliente       Step = "cliente"
	StepTipoAparelho  Step = "tipo_aparelho"
	StepMarcaModelo   Step = "marca_modelo"
	StepProblema      Step = "problema"
	StepValor         Step = "valor"
	StepCodigo        Step = "codigo"
	StepQuantidade    Step = "quantidade"
	StepPrecoVenda    Step = "preco_venda"
	StepCategoria     Step = "categoria"
	StepEstoqueMinimo Step = "estoque_minimo"
	StepPrecoCusto    Step = "preco_custo"
	StepCampo         Step = "campo"
	StepConfirmar     Step = "confirmar"
)

// modeSteps is the set of steps each mode may be in.
var modeSteps = map[Mode][]Step{
	ModeCriandoCliente:      {StepNome, StepCPFCNPJ, StepTelefone, StepConfirmar, StepEmail, StepEndereco, StepObservacoes},
	ModeCriandoOS:           {StepCliente, StepTipoAparelho, StepMarcaModelo, StepProblema, StepValor, StepConfirmar},
	ModeCriandoProduto:      {StepNome, StepCodigo, StepQuantidade, StepPrecoVenda, StepConfirmar, StepCategoria, StepEstoqueMinimo, StepPrecoCusto},
	ModeConfirmandoExclusao: {StepConfirmar},
	ModeEditando:            {StepCampo, StepConfirmar},
}

// EntityRef points at the record a delete/edit flow is about.
type EntityRef struct {
	Tipo      EntityType `json:"tipo"`
	ID        int64      `json:"id"`
	Descricao string     `json:"descricao"`
}

// FieldChange is a pending edit waiting for confirmation. Valor is kept as text and
// converted to the column type when the edit is applied.
type FieldChange struct {
	Campo  string `json:"campo"`
	Rotulo string `json:"rotulo"`
	Valor  string `json:"valor"`
}

// ConversationState is held by the caller and sent back on every turn.
type ConversationState struct {
	Modo      Mode              `json:"modo"`
	Etapa     Step              `json:"etapa"`
	Dados     map[string]string `json:"dados,omitempty"`
	Entidade  *EntityRef        `json:"entidade,omitempty"`
	Alteracao *FieldChange      `json:"alteracao,omitempty"`
}

// Active reports whether a flow is in progress.
func (s *ConversationState) Active() bool {
	return s != nil && s.Modo != ""
}

// Validate checks that the mode/step combination exists and that
// delete/edit flows carry the entity they are about.
func (s *ConversationState) Validate() error {
	steps, ok := modeSteps[s.Modo]
	if !ok {
		return &ErrValidation{Field: "modo", Message: "modo desconhecido: " + string(s.Modo)}
	}
	found := false
	for _, st := range steps {
		if st == s.Etapa {
			found = true
			break
		}
	}
	if !found {
		return &ErrValidation{Field: "etapa", Message: "etapa " + string(s.Etapa) + " não existe no modo " + string(s.Modo)}
	}
	switch s.Modo {
	case ModeConfirmandoExclusao, ModeEditando:
		if s.Entidade == nil || s.Entidade.ID <= 0 {
			return &ErrValidation{Field: "entidade", Message: "entidade obrigatória no modo " + string(s.Modo)}
		}
		if s.Modo == ModeEditando && s.Etapa == StepConfirmar && s.Alteracao == nil {
			return &ErrValidation{Field: "alteracao", Message: "alteração pendente ausente"}
		}
	}
	return nil
}

// ParseConversationState decodes the raw state sent by the caller. Anything that is
// absent, malformed or invalid yields nil so the turn starts with no active flow.
func ParseConversationState(raw json.RawMessage) *ConversationState {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var st ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil
	}
	if !st.Active() || st.Validate() != nil {
		return nil
	}
	if st.Dados == nil {
		st.Dados = map[string]string{}
	}
	return &st
}

// ============================================================
// POST /consulta
// ============================================================

// ConsultaRequest is the body for POST /consulta.
type ConsultaRequest struct {
	Consulta             string          `json:"consulta"`
	EstadoConversacional json.RawMessage `json:"estado_conversacional,omitempty"`
	ConversaID           string          `json:"conversa_id,omitempty"`
}

// ConsultaResponse is the body returned by POST /consulta.
type ConsultaResponse struct {
	Resposta             string             `json:"resposta"`
	Dados                *ConsultaData      `json:"dados"`
	Consulta             string             `json:"consulta"`
	EstadoConversacional *ConversationState `json:"estado_conversacional"`
	Acao                 *Acao              `json:"acao,omitempty"`
	ConversaID           string             `json:"conversa_id"`
}

// ConsultaData is the structured payload extracted alongside the free-text answer.
// Tipo tells the frontend which widget to render; empty means no widget.
type ConsultaData struct {
	Tipo       string          `json:"tipo,omitempty"`
	OS         *ServiceOrder   `json:"os,omitempty"`
	Cliente    *Client         `json:"cliente,omitempty"`
	Ordens     []ServiceOrder  `json:"ordens,omitempty"`
	Produtos   []Product       `json:"produtos,omitempty"`
	Financeiro *SnapshotTotals `json:"financeiro,omitempty"`
	Status     OrderStatus     `json:"status,omitempty"`
}

// Acao reports a mutation confirmed during the turn.
type Acao struct {
	Tipo     string     `json:"tipo"` // criar, editar, excluir
	Entidade EntityType `json:"entidade"`
	ID       int64      `json:"id"`
}

// ============================================================
// POST /resumo e /diagnostico
// ============================================================

// ResumoRequest is the body for POST /resumo.
type ResumoRequest struct {
	Problema string `json:"problema"`
}

// ResumoResponse is the body returned by POST /resumo.
type ResumoResponse struct {
	Resumo           string `json:"resumo"`
	ProblemaOriginal string `json:"problema_original"`
}

// DiagnosticoRequest is the body for POST /diagnostico.
type DiagnosticoRequest struct {
	TipoAparelho string `json:"tipoAparelho"`
	MarcaModelo  string `json:"marcaModelo"`
	Problema     string `json:"problema"`
}

// DiagnosticoResponse is the body returned by POST /diagnostico.
type DiagnosticoResponse struct {
	Diagnostico  string `json:"diagnostico"`
	TipoAparelho string `json:"tipoAparelho"`
	MarcaModelo  string `json:"marcaModelo"`
	Problema     string `json:"problema"`
}

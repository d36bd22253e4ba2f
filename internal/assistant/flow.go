package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
	"github.com/boddenberg/oficina-assistant-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("assistant")

// Reply is the outcome of one conversational turn. State nil means no flow is
// active after the turn; Acao is set only when a mutation was committed.
type Reply struct {
	Text  string
	State *domain.ConversationState
	Acao  *domain.Acao
}

// Flow drives the multi-turn create/delete/edit conversations. It keeps no
// session data: the state travels with every request.
type Flow struct {
	store  port.EntityStore
	logger *zap.Logger
}

func NewFlow(store port.EntityStore, logger *zap.Logger) *Flow {
	return &Flow{store: store, logger: logger}
}

// ============================================================
// Campos de cadastro
// ============================================================

type parseFunc func(ctx context.Context, f *Flow, in string, snap *domain.ContextSnapshot) (value string, problem string)

type fieldSpec struct {
	step     domain.Step
	label    string
	ask      string
	keywords phraseList // optional fields: words that open the field at the confirmation step
	parse    parseFunc
}

type createFlow struct {
	entity   domain.EntityType
	mode     domain.Mode
	intro    string
	required []fieldSpec
	optional []fieldSpec
	commit   func(ctx context.Context, f *Flow, d map[string]string, snap *domain.ContextSnapshot) (int64, string, error)
}

func (cf *createFlow) field(step domain.Step) (fieldSpec, bool) {
	for _, fs := range cf.required {
		if fs.step == step {
			return fs, true
		}
	}
	for _, fs := range cf.optional {
		if fs.step == step {
			return fs, true
		}
	}
	return fieldSpec{}, false
}

// next returns the step after a required field; optional fields go back to confirmar.
func (cf *createFlow) next(step domain.Step) domain.Step {
	for i, fs := range cf.required {
		if fs.step == step && i+1 < len(cf.required) {
			return cf.required[i+1].step
		}
	}
	return domain.StepConfirmar
}

var createFlows = map[domain.Mode]*createFlow{
	domain.ModeCriandoCliente: {
		entity: domain.EntityCliente,
		mode:   domain.ModeCriandoCliente,
		intro:  "Vamos cadastrar um novo cliente.",
		required: []fieldSpec{
			{step: domain.StepNome, label: "Nome", ask: "Qual é o nome completo do cliente?", parse: parseName},
			{step: domain.StepCPFCNPJ, label: "CPF/CNPJ", ask: "Informe o CPF ou CNPJ do cliente.", parse: parseDocument},
			{step: domain.StepTelefone, label: "Telefone", ask: "Qual é o telefone com DDD?", parse: parsePhone},
		},
		optional: []fieldSpec{
			{step: domain.StepEmail, label: "E-mail", ask: "Qual é o e-mail do cliente?", keywords: phrases("email", "e-mail"), parse: parseEmail},
			{step: domain.StepEndereco, label: "Endereço", ask: "Qual é o endereço do cliente?", keywords: phrases("endereço", "endereco", "rua"), parse: parseText},
			{step: domain.StepObservacoes, label: "Observações", ask: "Quais observações deseja registrar?", keywords: phrases("observação", "observações", "obs", "nota"), parse: parseText},
		},
		commit: commitClient,
	},
	domain.ModeCriandoOS: {
		entity: domain.EntityOS,
		mode:   domain.ModeCriandoOS,
		intro:  "Vamos abrir uma nova ordem de serviço.",
		required: []fieldSpec{
			{step: domain.StepCliente, label: "Cliente", ask: "Para qual cliente? Informe o nome ou o CPF/CNPJ.", parse: parseOrderClient},
			{step: domain.StepTipoAparelho, label: "Aparelho", ask: "Qual é o tipo de aparelho (ex.: celular, notebook)?", parse: parseText},
			{step: domain.StepMarcaModelo, label: "Marca/modelo", ask: "Qual é a marca e o modelo?", parse: parseText},
			{step: domain.StepProblema, label: "Problema relatado", ask: "Qual é o problema relatado pelo cliente?", parse: parseText},
			{step: domain.StepValor, label: "Orçamento", ask: "Qual é o valor do orçamento? Diga \"pular\" se ainda não houver.", parse: parseBudget},
		},
		commit: commitOrder,
	},
	domain.ModeCriandoProduto: {
		entity: domain.EntityProduto,
		mode:   domain.ModeCriandoProduto,
		intro:  "Vamos cadastrar um novo produto.",
		required: []fieldSpec{
			{step: domain.StepNome, label: "Nome", ask: "Qual é o nome do produto?", parse: parseName},
			{step: domain.StepCodigo, label: "Código", ask: "Qual é o código do produto?", parse: parseProductCode},
			{step: domain.StepQuantidade, label: "Quantidade", ask: "Quantas unidades há em estoque?", parse: parseQuantity},
			{step: domain.StepPrecoVenda, label: "Preço de venda", ask: "Qual é o preço de venda?", parse: parsePrice},
		},
		optional: []fieldSpec{
			{step: domain.StepCategoria, label: "Categoria", ask: "Qual é a categoria?", keywords: phrases("categoria"), parse: parseText},
			{step: domain.StepEstoqueMinimo, label: "Estoque mínimo", ask: "Qual é o estoque mínimo?", keywords: phrases("mínimo", "estoque mínimo"), parse: parseQuantity},
			{step: domain.StepPrecoCusto, label: "Preço de custo", ask: "Qual é o preço de custo?", keywords: phrases("custo", "preço de custo"), parse: parsePrice},
		},
		commit: commitProduct,
	},
}

func createFlowFor(entity domain.EntityType) *createFlow {
	for _, cf := range createFlows {
		if cf.entity == entity {
			return cf
		}
	}
	return nil
}

// ============================================================
// Início dos fluxos
// ============================================================

// StartCreate opens a creation flow at its first step with an empty field map.
func (f *Flow) StartCreate(entity domain.EntityType) Reply {
	cf := createFlowFor(entity)
	if cf == nil {
		return Reply{Text: "Não sei cadastrar esse tipo de registro."}
	}
	first := cf.required[0]
	return Reply{
		Text:  cf.intro + " " + first.ask + " (diga \"cancelar\" a qualquer momento para desistir)",
		State: &domain.ConversationState{Modo: cf.mode, Etapa: first.step, Dados: map[string]string{}},
	}
}

// refPhrase prefixes the record description with the article (or the
// contraction of prep) matching its gender: "a OS #OS0003", "do produto X".
func refPhrase(ref *domain.EntityRef, prep string) string {
	fem := ref.Tipo == domain.EntityOS
	var art string
	switch prep {
	case "de":
		art = "do"
		if fem {
			art = "da"
		}
	case "em":
		art = "no"
		if fem {
			art = "na"
		}
	default:
		art = "o"
		if fem {
			art = "a"
		}
	}
	return art + " " + ref.Descricao
}

// StartDelete asks for confirmation before removing the matched record.
func (f *Flow) StartDelete(m *Match) Reply {
	ref := m.Ref()
	return Reply{
		Text: fmt.Sprintf("Atenção: deseja realmente excluir %s? Essa ação não pode ser desfeita. "+
			"Responda \"sim\" para confirmar ou \"cancelar\" para desistir.", refPhrase(ref, "")),
		State: &domain.ConversationState{Modo: domain.ModeConfirmandoExclusao, Etapa: domain.StepConfirmar, Entidade: ref},
	}
}

// ============================================================
// Continuação
// ============================================================

// Continue feeds one message to the active flow.
func (f *Flow) Continue(ctx context.Context, text string, state *domain.ConversationState, snap *domain.ContextSnapshot) Reply {
	ctx, span := tracer.Start(ctx, "Flow.Continue")
	defer span.End()
	span.SetAttributes(
		attribute.String("flow.modo", string(state.Modo)),
		attribute.String("flow.etapa", string(state.Etapa)),
	)

	st := cloneState(state)
	u := newUtterance(text)

	switch st.Modo {
	case domain.ModeConfirmandoExclusao:
		return f.continueDelete(ctx, u, st)
	case domain.ModeEditando:
		return f.continueEdit(ctx, text, u, st)
	}
	cf, ok := createFlows[st.Modo]
	if !ok {
		return Reply{Text: "Não entendi em que etapa estávamos. Vamos recomeçar: o que deseja fazer?"}
	}
	return f.continueCreate(ctx, cf, text, u, st, snap)
}

func cloneState(s *domain.ConversationState) *domain.ConversationState {
	out := *s
	out.Dados = make(map[string]string, len(s.Dados))
	for k, v := range s.Dados {
		out.Dados[k] = v
	}
	if s.Entidade != nil {
		e := *s.Entidade
		out.Entidade = &e
	}
	if s.Alteracao != nil {
		a := *s.Alteracao
		out.Alteracao = &a
	}
	return &out
}

// cancelMaxWords bounds a cancel at data-entry steps, so a free-text answer
// like "desliga quando tento sair do app" is stored instead of ending the flow.
const cancelMaxWords = 3

func isCancel(u utterance, atConfirm bool) bool {
	if atConfirm {
		return cancelWords.in(u) || negativeWords.in(u)
	}
	return len(u.words) <= cancelMaxWords && cancelWords.in(u)
}

func (f *Flow) continueCreate(ctx context.Context, cf *createFlow, text string, u utterance, st *domain.ConversationState, snap *domain.ContextSnapshot) Reply {
	atConfirm := st.Etapa == domain.StepConfirmar
	if isCancel(u, atConfirm) {
		return Reply{Text: "Cadastro cancelado. Nenhum dado foi salvo."}
	}

	if atConfirm {
		if affirmWords.in(u) {
			return f.commitCreate(ctx, cf, st, snap)
		}
		for _, fs := range cf.optional {
			if fs.keywords.in(u) {
				st.Etapa = fs.step
				return Reply{Text: fs.ask, State: st}
			}
		}
		return Reply{Text: "Não entendi. " + confirmPrompt(cf, st.Dados, snap), State: st}
	}

	fs, ok := cf.field(st.Etapa)
	if !ok {
		return Reply{Text: "Não entendi em que etapa estávamos. Vamos recomeçar: o que deseja fazer?"}
	}
	value, problem := fs.parse(ctx, f, text, snap)
	if problem != "" {
		return Reply{Text: problem + " " + fs.ask, State: st}
	}
	st.Dados[string(fs.step)] = value
	st.Etapa = cf.next(fs.step)

	if st.Etapa == domain.StepConfirmar {
		return Reply{Text: confirmPrompt(cf, st.Dados, snap), State: st}
	}
	nextField, _ := cf.field(st.Etapa)
	return Reply{Text: nextField.ask, State: st}
}

func (f *Flow) commitCreate(ctx context.Context, cf *createFlow, st *domain.ConversationState, snap *domain.ContextSnapshot) Reply {
	ctx, span := tracer.Start(ctx, "Flow.Commit")
	defer span.End()
	span.SetAttributes(attribute.String("flow.entidade", string(cf.entity)))

	id, msg, err := cf.commit(ctx, f, st.Dados, snap)
	if err != nil {
		span.RecordError(err)
		f.logger.Warn("assistant create failed",
			zap.String("entidade", string(cf.entity)),
			zap.Error(err),
		)
		return Reply{
			Text:  "Não consegui salvar: " + userMessage(err) + " Responda \"sim\" para tentar novamente ou \"cancelar\" para desistir.",
			State: st,
		}
	}
	f.logger.Info("assistant create committed",
		zap.String("entidade", string(cf.entity)),
		zap.Int64("id", id),
	)
	return Reply{Text: msg, Acao: &domain.Acao{Tipo: "criar", Entidade: cf.entity, ID: id}}
}

func confirmPrompt(cf *createFlow, d map[string]string, snap *domain.ContextSnapshot) string {
	var b strings.Builder
	b.WriteString("Confira os dados:\n")
	for _, fs := range append(append([]fieldSpec{}, cf.required...), cf.optional...) {
		v, ok := d[string(fs.step)]
		if !ok {
			continue
		}
		b.WriteString("- " + fs.label + ": " + displayValue(fs.step, v, snap) + "\n")
	}
	b.WriteString("Confirma o cadastro? Responda \"sim\" para salvar ou \"cancelar\" para desistir.")
	var extras []string
	for _, fs := range cf.optional {
		if _, ok := d[string(fs.step)]; !ok {
			extras = append(extras, strings.ToLower(fs.label))
		}
	}
	if len(extras) > 0 {
		b.WriteString(" Para incluir mais informações, diga: " + strings.Join(extras, ", ") + ".")
	}
	return b.String()
}

func displayValue(step domain.Step, v string, snap *domain.ContextSnapshot) string {
	switch step {
	case domain.StepCliente:
		id, _ := strconv.ParseInt(v, 10, 64)
		if snap != nil {
			if c, ok := snap.ClientByID(id); ok {
				return c.Nome
			}
		}
		return "cliente #" + v
	case domain.StepValor, domain.StepPrecoVenda, domain.StepPrecoCusto:
		if v == "" {
			return "não informado"
		}
		n, _ := strconv.ParseFloat(v, 64)
		return formatBRL(n)
	}
	return v
}

// isConflict reports a constraint violation; repeating the same write cannot succeed.
func isConflict(err error) bool {
	var conflict *domain.ErrConflict
	return errors.As(err, &conflict)
}

// userMessage exposes validation and conflict messages; anything else is generic.
func userMessage(err error) string {
	var conflict *domain.ErrConflict
	var validation *domain.ErrValidation
	switch {
	case errors.As(err, &conflict):
		return conflict.Error() + "."
	case errors.As(err, &validation):
		return validation.Error() + "."
	case domain.IsNotFound(err):
		return "o registro não foi encontrado."
	}
	return "ocorreu um erro ao acessar o banco de dados."
}

// ============================================================
// Exclusão
// ============================================================

func (f *Flow) continueDelete(ctx context.Context, u utterance, st *domain.ConversationState) Reply {
	if isCancel(u, true) {
		return Reply{Text: "Exclusão cancelada. Nada foi alterado."}
	}
	if !affirmWords.in(u) {
		return Reply{
			Text:  fmt.Sprintf("Responda \"sim\" para excluir %s ou \"cancelar\" para desistir.", refPhrase(st.Entidade, "")),
			State: st,
		}
	}

	ctx, span := tracer.Start(ctx, "Flow.Delete")
	defer span.End()
	ref := st.Entidade
	span.SetAttributes(attribute.String("flow.entidade", string(ref.Tipo)), attribute.Int64("flow.id", ref.ID))

	var err error
	switch ref.Tipo {
	case domain.EntityCliente:
		err = f.store.DeleteClient(ctx, ref.ID)
	case domain.EntityOS:
		err = f.store.DeleteOrder(ctx, ref.ID)
	case domain.EntityProduto:
		err = f.store.DeleteProduct(ctx, ref.ID)
	default:
		return Reply{Text: "Não sei excluir esse tipo de registro."}
	}
	if err != nil {
		span.RecordError(err)
		f.logger.Warn("assistant delete failed",
			zap.String("entidade", string(ref.Tipo)),
			zap.Int64("id", ref.ID),
			zap.Error(err),
		)
		if domain.IsNotFound(err) {
			return Reply{Text: fmt.Sprintf("Registro não encontrado (%s). Nada foi excluído.", ref.Descricao)}
		}
		if isConflict(err) {
			return Reply{Text: fmt.Sprintf("Não é possível excluir %s: %s", refPhrase(ref, ""), userMessage(err))}
		}
		return Reply{
			Text:  "Não consegui excluir: " + userMessage(err) + " Responda \"sim\" para tentar novamente ou \"cancelar\" para desistir.",
			State: st,
		}
	}
	f.logger.Info("assistant delete committed", zap.String("entidade", string(ref.Tipo)), zap.Int64("id", ref.ID))
	return Reply{
		Text: fmt.Sprintf("Pronto! Registro excluído: %s (id %d).", ref.Descricao, ref.ID),
		Acao: &domain.Acao{Tipo: "excluir", Entidade: ref.Tipo, ID: ref.ID},
	}
}

// ============================================================
// Validação de campos
// ============================================================

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var skipWords = phrases("pular", "pula", "pule", "sem orçamento", "sem valor", "não sei", "depois", "nenhum")

func parseText(_ context.Context, _ *Flow, in string, _ *domain.ContextSnapshot) (string, string) {
	v := strings.TrimSpace(in)
	if v == "" {
		return "", "Não recebi nenhuma informação."
	}
	return v, ""
}

func parseName(_ context.Context, _ *Flow, in string, _ *domain.ContextSnapshot) (string, string) {
	v := strings.Join(strings.Fields(in), " ")
	if len([]rune(v)) < 2 {
		return "", "Nome muito curto."
	}
	return v, ""
}

func parseDocument(ctx context.Context, f *Flow, in string, snap *domain.ContextSnapshot) (string, string) {
	digits, ok := digitsOnly(in)
	if !ok || len(digits) < 11 || len(digits) > 14 {
		return "", "CPF/CNPJ inválido: informe 11 dígitos (CPF) ou 14 dígitos (CNPJ)."
	}
	if snap != nil {
		for _, c := range snap.Clientes {
			if d, _ := digitsOnly(c.CPFCNPJ); d == digits {
				return "", fmt.Sprintf("Já existe um cliente com este CPF/CNPJ (%s).", c.Nome)
			}
		}
	}
	existing, err := f.store.FindClientByDocument(ctx, digits)
	if err != nil {
		f.logger.Warn("document lookup failed", zap.Error(err))
	} else if existing != nil {
		return "", fmt.Sprintf("Já existe um cliente com este CPF/CNPJ (%s).", existing.Nome)
	}
	return digits, ""
}

func parsePhone(_ context.Context, _ *Flow, in string, _ *domain.ContextSnapshot) (string, string) {
	digits, ok := digitsOnly(in)
	if !ok || len(digits) < 10 || len(digits) > 13 {
		return "", "Telefone inválido: informe o número com DDD (ao menos 10 dígitos)."
	}
	return digits, ""
}

func parseEmail(_ context.Context, _ *Flow, in string, _ *domain.ContextSnapshot) (string, string) {
	v := strings.TrimSpace(in)
	if !emailRe.MatchString(v) {
		return "", "E-mail inválido."
	}
	return strings.ToLower(v), ""
}

func parseOrderClient(ctx context.Context, f *Flow, in string, snap *domain.ContextSnapshot) (string, string) {
	if digits, ok := digitsOnly(in); ok && len(digits) >= 11 {
		if snap != nil {
			for _, c := range snap.Clientes {
				if d, _ := digitsOnly(c.CPFCNPJ); d == digits {
					return strconv.FormatInt(c.ID, 10), ""
				}
			}
		}
		if c, err := f.store.FindClientByDocument(ctx, digits); err == nil && c != nil {
			return strconv.FormatInt(c.ID, 10), ""
		}
		return "", "Não encontrei cliente com esse CPF/CNPJ."
	}
	if snap != nil {
		u := newUtterance(in)
		onlyClients := func(t domain.EntityType) bool { return t == domain.EntityCliente }
		if m := byExactName(u, snap, onlyClients); m != nil {
			return strconv.FormatInt(m.ID, 10), ""
		}
		if m := fuzzyClient(u, snap); m != nil {
			return strconv.FormatInt(m.ID, 10), ""
		}
	}
	return "", "Não encontrei esse cliente. Confira o nome ou cadastre o cliente antes de abrir a OS."
}

func parseBudget(ctx context.Context, f *Flow, in string, snap *domain.ContextSnapshot) (string, string) {
	if skipWords.in(newUtterance(in)) {
		return "", ""
	}
	return parsePrice(ctx, f, in, snap)
}

func parsePrice(_ context.Context, _ *Flow, in string, _ *domain.ContextSnapshot) (string, string) {
	n, ok := firstNumber(in)
	if !ok || n < 0 {
		return "", "Valor inválido: informe um número (ex.: 150 ou 1.250,90)."
	}
	return strconv.FormatFloat(n, 'f', 2, 64), ""
}

func parseQuantity(_ context.Context, _ *Flow, in string, _ *domain.ContextSnapshot) (string, string) {
	n, ok := firstInt(in)
	if !ok || n < 0 {
		return "", "Quantidade inválida: informe um número inteiro."
	}
	return strconv.Itoa(n), ""
}

func parseProductCode(_ context.Context, _ *Flow, in string, snap *domain.ContextSnapshot) (string, string) {
	code := strings.TrimSpace(in)
	if code == "" || strings.ContainsAny(code, " \t") {
		return "", "Código inválido: use um código sem espaços."
	}
	if snap != nil {
		for _, p := range snap.Produtos {
			if strings.EqualFold(p.Codigo, code) {
				return "", fmt.Sprintf("Já existe um produto com este código (%s).", p.Nome)
			}
		}
	}
	return code, ""
}

// ============================================================
// Persistência
// ============================================================

func commitClient(ctx context.Context, f *Flow, d map[string]string, _ *domain.ContextSnapshot) (int64, string, error) {
	c := &domain.Client{
		Nome:        d[string(domain.StepNome)],
		CPFCNPJ:     d[string(domain.StepCPFCNPJ)],
		Telefone:    d[string(domain.StepTelefone)],
		Email:       d[string(domain.StepEmail)],
		Endereco:    d[string(domain.StepEndereco)],
		Observacoes: d[string(domain.StepObservacoes)],
	}
	id, err := f.store.CreateClient(ctx, c)
	if err != nil {
		return 0, "", err
	}
	return id, fmt.Sprintf("Cliente %s cadastrado com sucesso (id %d).", c.Nome, id), nil
}

func commitOrder(ctx context.Context, f *Flow, d map[string]string, snap *domain.ContextSnapshot) (int64, string, error) {
	clientID, err := strconv.ParseInt(d[string(domain.StepCliente)], 10, 64)
	if err != nil {
		return 0, "", &domain.ErrValidation{Field: "cliente", Message: "Cliente inválido"}
	}
	var valor float64
	if v := d[string(domain.StepValor)]; v != "" {
		if valor, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, "", &domain.ErrValidation{Field: "valor", Message: "Valor inválido"}
		}
	}
	o := &domain.ServiceOrder{
		ClienteID:        clientID,
		TipoAparelho:     d[string(domain.StepTipoAparelho)],
		MarcaModelo:      d[string(domain.StepMarcaModelo)],
		ProblemaRelatado: d[string(domain.StepProblema)],
		Status:           domain.StatusAguardando,
		ValorOrcamento:   valor,
	}
	id, err := f.store.CreateOrder(ctx, o)
	if err != nil {
		return 0, "", err
	}
	numero := o.Numero
	if numero == "" {
		numero = domain.FormatOrderNumber(id)
	}
	return id, fmt.Sprintf("OS %s aberta com sucesso para %s.", numero, displayValue(domain.StepCliente, strconv.FormatInt(clientID, 10), snap)), nil
}

func commitProduct(ctx context.Context, f *Flow, d map[string]string, _ *domain.ContextSnapshot) (int64, string, error) {
	p := &domain.Product{
		Codigo:    d[string(domain.StepCodigo)],
		Nome:      d[string(domain.StepNome)],
		Categoria: d[string(domain.StepCategoria)],
	}
	p.Quantidade, _ = strconv.Atoi(d[string(domain.StepQuantidade)])
	p.EstoqueMinimo, _ = strconv.Atoi(d[string(domain.StepEstoqueMinimo)])
	p.PrecoVenda, _ = strconv.ParseFloat(d[string(domain.StepPrecoVenda)], 64)
	p.PrecoCusto, _ = strconv.ParseFloat(d[string(domain.StepPrecoCusto)], 64)

	id, err := f.store.CreateProduct(ctx, p)
	if err != nil {
		return 0, "", err
	}
	return id, fmt.Sprintf("Produto %s (código %s) cadastrado com sucesso (id %d).", p.Nome, p.Codigo, id), nil
}

package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type valueKind int

const (
	valueText valueKind = iota
	valuePhone
	valueEmail
	valueDocument
	valueInt
	valueDecimal
	valueStatus
)

// editField is a column the assistant can change and the words that select it.
type editField struct {
	campo    string
	rotulo   string
	kind     valueKind
	keywords phraseList
}

// editFields is checked in order per entity; the first keyword hit selects the
// column. "mínimo" precedes "estoque" and "custo" precedes "preço" on purpose.
var editFields = map[domain.EntityType][]editField{
	domain.EntityCliente: {
		{"telefone", "telefone", valuePhone, phrases("telefone", "fone", "celular", "whatsapp", "zap", "contato")},
		{"email", "e-mail", valueEmail, phrases("email", "e-mail")},
		{"endereco", "endereço", valueText, phrases("endereço", "endereco", "rua", "morada")},
		{"cpf_cnpj", "CPF/CNPJ", valueDocument, phrases("cpf", "cnpj", "documento")},
		{"observacoes", "observações", valueText, phrases("observação", "observações", "obs", "nota")},
		{"nome", "nome", valueText, phrases("nome")},
	},
	domain.EntityOS: {
		{"status", "status", valueStatus, phrases("status", "situação", "estado", "marque", "marcar", "marca como")},
		{"valor_orcamento", "orçamento", valueDecimal, phrases("valor", "orçamento", "preço")},
		{"problema_relatado", "problema relatado", valueText, phrases("problema", "defeito")},
		{"marca_modelo", "marca/modelo", valueText, phrases("marca", "modelo")},
		{"tipo_aparelho", "aparelho", valueText, phrases("aparelho", "equipamento", "tipo")},
	},
	domain.EntityProduto: {
		{"estoque_minimo", "estoque mínimo", valueInt, phrases("mínimo", "estoque mínimo")},
		{"quantidade", "quantidade", valueInt, phrases("quantidade", "estoque", "qtd", "unidades")},
		{"preco_custo", "preço de custo", valueDecimal, phrases("custo", "preço de custo")},
		{"preco_venda", "preço de venda", valueDecimal, phrases("preço", "preço de venda", "valor", "venda")},
		{"nome", "nome", valueText, phrases("nome")},
		{"codigo", "código", valueText, phrases("código", "codigo")},
		{"categoria", "categoria", valueText, phrases("categoria")},
	},
}

var editExamples = map[domain.EntityType]string{
	domain.EntityCliente: `"telefone para 11987654321" ou "email para maria@exemplo.com"`,
	domain.EntityOS:      `"status para pronto" ou "valor para 350"`,
	domain.EntityProduto: `"quantidade para 10" ou "preço para 89,90"`,
}

var (
	phoneFindRe = regexp.MustCompile(`\+?\(?\d[\d\s().-]{8,}\d`)
	emailFindRe = regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`)
	docFindRe   = regexp.MustCompile(`\d[\d./-]{9,}\d`)
)

func findEditField(entity domain.EntityType, campo string) (editField, bool) {
	for _, ef := range editFields[entity] {
		if ef.campo == campo {
			return ef, true
		}
	}
	return editField{}, false
}

// detectChange finds which column the message asks to change and its new value.
func detectChange(entity domain.EntityType, text string) (*domain.FieldChange, bool) {
	head := newUtterance(beforePara(text))
	for _, ef := range editFields[entity] {
		if !ef.keywords.in(head) {
			continue
		}
		v, ok := extractValue(ef.kind, text)
		if !ok {
			return nil, false
		}
		return &domain.FieldChange{Campo: ef.campo, Rotulo: ef.rotulo, Valor: v}, true
	}
	return nil, false
}

func extractValue(kind valueKind, text string) (string, bool) {
	value, hasPara := afterPara(text)
	region := text
	if hasPara {
		region = value
	}

	switch kind {
	case valueText:
		return value, hasPara
	case valuePhone:
		digits, ok := digitsOnly(phoneFindRe.FindString(region))
		return digits, ok && len(digits) >= 10 && len(digits) <= 13
	case valueEmail:
		m := emailFindRe.FindString(region)
		return strings.ToLower(m), m != ""
	case valueDocument:
		digits, ok := digitsOnly(docFindRe.FindString(region))
		return digits, ok && len(digits) >= 11 && len(digits) <= 14
	case valueInt:
		if !hasPara {
			region = orderNumberRe.ReplaceAllString(fold(text), " ")
		}
		n, ok := firstInt(region)
		return strconv.Itoa(n), ok
	case valueDecimal:
		if !hasPara {
			region = orderNumberRe.ReplaceAllString(fold(text), " ")
		}
		n, ok := firstNumber(region)
		return strconv.FormatFloat(n, 'f', 2, 64), ok && n >= 0
	case valueStatus:
		// "marque a os 3 como pronta para retirada": the status follows "como".
		if st, ok := statusAfterComo(beforePara(text)); ok {
			return string(st), true
		}
		st, ok := detectStatus(newUtterance(region))
		return string(st), ok
	}
	return "", false
}

func statusAfterComo(head string) (domain.OrderStatus, bool) {
	w := newUtterance(head).words
	for i, word := range w {
		if word == "como" {
			return detectStatus(newUtterance(strings.Join(w[i+1:], " ")))
		}
	}
	return "", false
}

func displayChange(entity domain.EntityType, c *domain.FieldChange) string {
	ef, _ := findEditField(entity, c.Campo)
	switch ef.kind {
	case valueStatus:
		return domain.OrderStatus(c.Valor).Label()
	case valueDecimal:
		n, _ := strconv.ParseFloat(c.Valor, 64)
		return formatBRL(n)
	}
	return c.Valor
}

// typedValue converts the pending text value to the column type.
func typedValue(entity domain.EntityType, c *domain.FieldChange) (any, error) {
	ef, ok := findEditField(entity, c.Campo)
	if !ok {
		return nil, &domain.ErrValidation{Field: c.Campo, Message: "Campo não pode ser alterado: " + c.Campo}
	}
	switch ef.kind {
	case valueInt:
		n, err := strconv.Atoi(c.Valor)
		if err != nil {
			return nil, &domain.ErrValidation{Field: c.Campo, Message: "Valor inválido: " + c.Valor}
		}
		return n, nil
	case valueDecimal:
		n, err := strconv.ParseFloat(c.Valor, 64)
		if err != nil {
			return nil, &domain.ErrValidation{Field: c.Campo, Message: "Valor inválido: " + c.Valor}
		}
		return n, nil
	case valueStatus:
		return domain.OrderStatus(c.Valor), nil
	}
	return c.Valor, nil
}

// ============================================================
// Fluxo de edição
// ============================================================

func editConfirmText(ref *domain.EntityRef, c *domain.FieldChange) string {
	return fmt.Sprintf("Confirma a alteração do campo %s %s para %q? Responda \"sim\" para confirmar ou \"cancelar\" para desistir.",
		c.Rotulo, refPhrase(ref, "de"), displayChange(ref.Tipo, c))
}

func editUnknownText(ref *domain.EntityRef) string {
	return fmt.Sprintf("Não consegui identificar o que alterar %s. Diga, por exemplo, %s.", refPhrase(ref, "em"), editExamples[ref.Tipo])
}

// StartEdit opens an edit flow for the matched record. When the change cannot
// be identified the flow waits at the field step for a clearer message.
func (f *Flow) StartEdit(text string, m *Match) Reply {
	ref := m.Ref()
	st := &domain.ConversationState{Modo: domain.ModeEditando, Etapa: domain.StepCampo, Entidade: ref}
	change, ok := detectChange(ref.Tipo, text)
	if !ok {
		return Reply{Text: editUnknownText(ref), State: st}
	}
	st.Etapa = domain.StepConfirmar
	st.Alteracao = change
	return Reply{Text: editConfirmText(ref, change), State: st}
}

func (f *Flow) continueEdit(ctx context.Context, text string, u utterance, st *domain.ConversationState) Reply {
	atConfirm := st.Etapa == domain.StepConfirmar
	if isCancel(u, atConfirm) {
		return Reply{Text: "Alteração cancelada. Nada foi alterado."}
	}
	ref := st.Entidade

	if !atConfirm {
		change, ok := detectChange(ref.Tipo, text)
		if !ok {
			return Reply{Text: editUnknownText(ref), State: st}
		}
		st.Etapa = domain.StepConfirmar
		st.Alteracao = change
		return Reply{Text: editConfirmText(ref, change), State: st}
	}

	if !affirmWords.in(u) {
		if change, ok := detectChange(ref.Tipo, text); ok {
			st.Alteracao = change
			return Reply{Text: editConfirmText(ref, change), State: st}
		}
		return Reply{Text: "Não entendi. " + editConfirmText(ref, st.Alteracao), State: st}
	}
	return f.applyEdit(ctx, st)
}

func (f *Flow) applyEdit(ctx context.Context, st *domain.ConversationState) Reply {
	ctx, span := tracer.Start(ctx, "Flow.Edit")
	defer span.End()
	ref, change := st.Entidade, st.Alteracao
	span.SetAttributes(
		attribute.String("flow.entidade", string(ref.Tipo)),
		attribute.Int64("flow.id", ref.ID),
		attribute.String("flow.campo", change.Campo),
	)

	v, err := typedValue(ref.Tipo, change)
	if err == nil {
		updates := map[string]any{change.Campo: v}
		switch ref.Tipo {
		case domain.EntityCliente:
			err = f.store.UpdateClient(ctx, ref.ID, updates)
		case domain.EntityOS:
			err = f.store.UpdateOrder(ctx, ref.ID, updates)
		case domain.EntityProduto:
			err = f.store.UpdateProduct(ctx, ref.ID, updates)
		default:
			return Reply{Text: "Não sei alterar esse tipo de registro."}
		}
	}
	if err != nil {
		span.RecordError(err)
		f.logger.Warn("assistant edit failed",
			zap.String("entidade", string(ref.Tipo)),
			zap.Int64("id", ref.ID),
			zap.String("campo", change.Campo),
			zap.Error(err),
		)
		if domain.IsNotFound(err) {
			return Reply{Text: fmt.Sprintf("Registro não encontrado (%s). Nada foi alterado.", ref.Descricao)}
		}
		if isConflict(err) {
			return Reply{Text: "Não consegui salvar a alteração: " + userMessage(err) + " Nada foi alterado."}
		}
		return Reply{
			Text:  "Não consegui salvar a alteração: " + userMessage(err) + " Responda \"sim\" para tentar novamente ou \"cancelar\" para desistir.",
			State: st,
		}
	}

	f.logger.Info("assistant edit committed",
		zap.String("entidade", string(ref.Tipo)),
		zap.Int64("id", ref.ID),
		zap.String("campo", change.Campo),
	)
	return Reply{
		Text: fmt.Sprintf("Pronto! Campo %s %s atualizado para %q.", change.Rotulo, refPhrase(ref, "de"), displayChange(ref.Tipo, change)),
		Acao: &domain.Acao{Tipo: "editar", Entidade: ref.Tipo, ID: ref.ID},
	}
}

package assistant

import (
	"regexp"
	"strings"

	"github.com/boddenberg/oficina-assistant-go/internal/domain"
)

// IntentKind is the route chosen for a message.
type IntentKind string

const (
	IntentContinuation IntentKind = "continuacao"
	IntentChitchat     IntentKind = "conversa"
	IntentDeleteOrEdit IntentKind = "alteracao"
	IntentCreate       IntentKind = "criacao"
	IntentQuery        IntentKind = "consulta"
)

// Op is the mutation requested by a DeleteOrEdit intent.
type Op string

const (
	OpDelete Op = "excluir"
	OpEdit   Op = "editar"
)

// Intent is the result of Classify.
type Intent struct {
	Kind   IntentKind
	Reply  string            // IntentChitchat
	Op     Op                // IntentDeleteOrEdit
	Entity domain.EntityType // IntentDeleteOrEdit, IntentCreate
	Match  *Match            // IntentDeleteOrEdit
	Rule   string            // name of the chit-chat table that matched
}

// paraSep splits "mude X para Y" into the target and the new value.
var paraSep = regexp.MustCompile(`(?i)\s(?:para|pra)\s`)

// beforePara drops the new value so "mude o nome do Ze para Maria" resolves Ze.
func beforePara(text string) string {
	if loc := paraSep.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}

// afterPara returns the new value of "mude X para Y".
func afterPara(text string) (string, bool) {
	loc := paraSep.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	v := strings.Trim(strings.TrimSpace(text[loc[1]:]), `"'.!?`)
	return v, v != ""
}

// Classify routes a message. It has no side effects: an active flow always
// wins, then canned chit-chat, then delete/edit with a resolved record, then
// creation, and everything else is a query.
func Classify(text string, state *domain.ConversationState, snap *domain.ContextSnapshot) Intent {
	if state.Active() {
		return Intent{Kind: IntentContinuation}
	}
	u := newUtterance(text)

	for _, r := range chitchatRules {
		if r.maxWords > 0 && len(u.words) > r.maxWords {
			continue
		}
		if r.phrases.in(u) {
			return Intent{Kind: IntentChitchat, Reply: r.reply, Rule: r.name}
		}
	}

	if snap != nil {
		if deleteVerbs.in(u) {
			if m, ok := resolve(u, snap); ok {
				return Intent{Kind: IntentDeleteOrEdit, Op: OpDelete, Entity: m.Tipo, Match: m}
			}
		}
		if editVerbs.in(u) {
			if m, ok := resolve(newUtterance(beforePara(text)), snap); ok {
				return Intent{Kind: IntentDeleteOrEdit, Op: OpEdit, Entity: m.Tipo, Match: m}
			}
		}
	}

	for _, c := range createTables {
		if c.phrases.in(u) {
			return Intent{Kind: IntentCreate, Entity: c.entity}
		}
	}
	return Intent{Kind: IntentQuery}
}

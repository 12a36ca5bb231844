package locator

import (
	"context"
	"regexp"
	"strings"
)

// Verdict is the outcome of classifying an actionable element inside a
// dialog or interstitial.
type Verdict int

const (
	// VerdictUnknown means no signal fired either way.
	VerdictUnknown Verdict = iota
	// VerdictConfirm means the element advances the flow.
	VerdictConfirm
	// VerdictDismiss means the element closes or abandons the dialog.
	VerdictDismiss
)

func (v Verdict) String() string {
	switch v {
	case VerdictConfirm:
		return "confirm"
	case VerdictDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

var (
	confirmWords = regexp.MustCompile(`confirmar|confirmo|continuar|enviar|validar|pagar|concluir|prosseguir|finalizar|ok`)
	dismissWords = regexp.MustCompile(`\b(fechar|cancelar|voltar|corrigir|nao|não|close|dismiss|btn-close|modal-close)\b|(^|\s)x(\s|$)`)
)

// Classifier decides whether a dialog control confirms or dismisses, reading
// visible text plus the id, class, aria-label, title and value attributes.
type Classifier struct{}

// evidenceAttrs are consulted in addition to the element's visible text.
var evidenceAttrs = []string{"id", "class", "aria-label", "title", "value", "name", "data-action", "onclick"}

// Classify gathers evidence from el and applies the decision rules:
// a structural dismiss marker (data-dismiss / data-bs-dismiss targeting a
// modal) forces dismiss unless the text says confirm and nothing says
// dismiss; otherwise confirm evidence only wins when no dismiss evidence
// is present, since close buttons frequently embed confirm-ish words.
func (c Classifier) Classify(ctx context.Context, el Element) (Verdict, error) {
	var parts []string
	if txt, err := el.Text(ctx); err == nil {
		parts = append(parts, txt)
	} else if err == ErrPageClosed {
		return VerdictUnknown, err
	}
	for _, name := range evidenceAttrs {
		val, ok, err := el.Attr(ctx, name)
		if err != nil {
			if err == ErrPageClosed {
				return VerdictUnknown, err
			}
			continue
		}
		if ok {
			parts = append(parts, val)
		}
	}

	structuralDismiss := false
	for _, name := range []string{"data-dismiss", "data-bs-dismiss"} {
		val, ok, err := el.Attr(ctx, name)
		if err != nil {
			if err == ErrPageClosed {
				return VerdictUnknown, err
			}
			continue
		}
		if ok && strings.Contains(strings.ToLower(val), "modal") {
			structuralDismiss = true
		}
	}

	evidence := strings.ToLower(strings.Join(parts, " "))
	return c.decide(evidence, structuralDismiss), nil
}

// ClassifyText applies the same rules to pre-gathered evidence text.
func (c Classifier) ClassifyText(evidence string, structuralDismiss bool) Verdict {
	return c.decide(strings.ToLower(evidence), structuralDismiss)
}

func (c Classifier) decide(evidence string, structuralDismiss bool) Verdict {
	hasConfirm := confirmWords.MatchString(evidence)
	hasDismiss := dismissWords.MatchString(evidence)

	if structuralDismiss {
		if hasConfirm && !hasDismiss {
			return VerdictConfirm
		}
		return VerdictDismiss
	}
	switch {
	case hasConfirm && hasDismiss:
		return VerdictDismiss
	case hasConfirm:
		return VerdictConfirm
	case hasDismiss:
		return VerdictDismiss
	default:
		return VerdictUnknown
	}
}

package locator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTextTable(t *testing.T) {
	var c Classifier
	cases := []struct {
		name       string
		evidence   string
		structural bool
		want       Verdict
	}{
		{"plain confirm", "Confirmar", false, VerdictConfirm},
		{"plain dismiss", "Fechar", false, VerdictDismiss},
		{"pay verb", "Pagar agora", false, VerdictConfirm},
		{"continue verb", "continuar", false, VerdictConfirm},
		{"both present treats as dismiss", "Cancelar e não continuar", false, VerdictDismiss},
		{"bare x glyph", "x", false, VerdictDismiss},
		{"x inside a word is not dismiss", "exportar", false, VerdictUnknown},
		{"accented nao", "não, voltar", false, VerdictDismiss},
		{"btn-close class token", "btn-close", false, VerdictDismiss},
		{"no evidence", "salvar preferencias", false, VerdictUnknown},
		{"structural forces dismiss", "", true, VerdictDismiss},
		{"structural with mixed evidence stays dismiss", "fechar ok", true, VerdictDismiss},
		{"structural overridden by pure confirm text", "Confirmar", true, VerdictConfirm},
		{"uppercase evidence", "FECHAR", false, VerdictDismiss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.ClassifyText(tc.evidence, tc.structural))
		})
	}
}

func TestClassifyReadsAttributes(t *testing.T) {
	var c Classifier

	el := newFakeElement("")
	el.attrs["aria-label"] = "Fechar"
	v, err := c.Classify(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, VerdictDismiss, v)

	el = newFakeElement("")
	el.attrs["class"] = "btn modal-close"
	v, err = c.Classify(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, VerdictDismiss, v)

	el = newFakeElement("")
	el.attrs["value"] = "Enviar"
	v, err = c.Classify(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirm, v)
}

func TestClassifyStructuralMarker(t *testing.T) {
	var c Classifier

	el := newFakeElement("Salvar")
	el.attrs["data-bs-dismiss"] = "modal"
	v, err := c.Classify(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, VerdictDismiss, v, "structural marker wins when text is not a pure confirm")

	el = newFakeElement("Confirmar")
	el.attrs["data-dismiss"] = "modal"
	v, err = c.Classify(context.Background(), el)
	require.NoError(t, err)
	assert.Equal(t, VerdictConfirm, v, "pure confirm text overrides the structural marker")
}

func TestClassifyDeadPage(t *testing.T) {
	var c Classifier
	el := newFakeElement("ok")
	el.textErr = ErrPageClosed
	_, err := c.Classify(context.Background(), el)
	assert.ErrorIs(t, err, ErrPageClosed)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "confirm", VerdictConfirm.String())
	assert.Equal(t, "dismiss", VerdictDismiss.String())
	assert.Equal(t, "unknown", VerdictUnknown.String())
}

package render

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/covera/internal/document/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProposal() domain.Proposal {
	return domain.Proposal{
		SubscriptionID: 42,
		CustomerName:   "Jean K",
		Phone:          "242066000000",
		Product:        "NSIA AUTO",
		Amount:         66113,
		Reference:      "NSIA-LIV-20250401080000-12345678",
		Coverage:       "3 mois",
		Lines: []domain.Line{
			{Label: "RC", Amount: 37982},
			{Label: "SR/IC", Amount: 5348},
		},
		IssuedAt: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestFormatXAF(t *testing.T) {
	assert.Equal(t, "0 FCFA", FormatXAF(0))
	assert.Equal(t, "500 FCFA", FormatXAF(500))
	assert.Equal(t, "50 000 FCFA", FormatXAF(50000))
	assert.Equal(t, "1 000 000 FCFA", FormatXAF(1000000))
	assert.Equal(t, "-12 500 FCFA", FormatXAF(-12500))
}

func TestTextCarriesProposalFields(t *testing.T) {
	out := string(Text(sampleProposal()))
	assert.Contains(t, out, "Jean K")
	assert.Contains(t, out, "66 113 FCFA")
	assert.Contains(t, out, "NSIA-LIV-20250401080000-12345678")
	assert.Contains(t, out, "NSIA AUTO")
	assert.Contains(t, out, "01/04/2025")
	assert.Contains(t, out, "EN ATTENTE")
}

func TestPDFRenderer(t *testing.T) {
	out, err := NewPDFRenderer().Render(context.Background(), sampleProposal())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFRendererRequiresReference(t *testing.T) {
	p := sampleProposal()
	p.Reference = ""
	_, err := NewPDFRenderer().Render(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrRenderFailed)
}

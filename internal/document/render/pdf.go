// Package render turns proposals into PDF documents.
package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/covera/internal/document/domain"
)

type PDFRenderer struct{}

func NewPDFRenderer() domain.Renderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(ctx context.Context, p domain.Proposal) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Reference) == "" {
		return nil, fmt.Errorf("%w: missing reference", domain.ErrRenderFailed)
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} / {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		col.New(8).Add(
			text.New("NSIA ASSURANCES", props.Text{Size: 10, Style: fontstyle.Bold}),
			text.New(title(p), props.Text{Top: 6, Size: 18, Style: fontstyle.Bold}),
		),
		code.NewQrCol(4, p.Reference, props.Rect{Center: true, Percent: 90}),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Référence : "+p.Reference, props.Text{Size: 9}),
			text.New("Date : "+issuedAt(p), props.Text{Top: 5, Size: 9}),
		),
		col.New(6).Add(
			text.New("Produit : "+p.Product, props.Text{Size: 9, Align: align.Right}),
			text.New("Couverture : "+valueOr(p.Coverage, "Non spécifiée"), props.Text{Top: 5, Size: 9, Align: align.Right}),
		),
	)

	m.AddRow(22,
		col.New(12).Add(
			text.New("Assuré", props.Text{Style: fontstyle.Bold}),
			text.New(valueOr(p.CustomerName, "Non renseigné"), props.Text{Top: 6}),
			text.New(valueOr(p.Phone, "Non renseigné"), props.Text{Top: 11}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(8,
		text.NewCol(8, "Garantie / composante", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Montant", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	for _, l := range p.Lines {
		m.AddRow(7,
			text.NewCol(8, l.Label, props.Text{Size: 9}),
			text.NewCol(4, FormatXAF(l.Amount), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Prime totale", props.Text{Top: 3, Style: fontstyle.Bold}),
		text.NewCol(3, FormatXAF(p.Amount), props.Text{Top: 3, Style: fontstyle.Bold, Align: align.Right}),
	)

	if p.PromoCode != "" {
		m.AddRow(8, text.NewCol(12, "Code promo : "+p.PromoCode, props.Text{Size: 9}))
	}

	status := "En attente de paiement. Présentez cette référence lors du règlement."
	if p.Paid {
		status = "Paiement reçu. Ce document vaut attestation de règlement."
	}
	m.AddRow(12, text.NewCol(12, status, props.Text{Top: 4, Size: 9, Style: fontstyle.Italic}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return doc.GetBytes(), nil
}

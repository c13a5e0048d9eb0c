package render

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/covera/internal/document/domain"
)

// Text renders the plain text fallback. It always succeeds.
func Text(p domain.Proposal) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "NSIA ASSURANCES - %s\n", strings.ToUpper(title(p)))
	b.WriteString(strings.Repeat("=", 48) + "\n\n")
	fmt.Fprintf(&b, "Référence : %s\n", p.Reference)
	fmt.Fprintf(&b, "Date      : %s\n\n", issuedAt(p))
	fmt.Fprintf(&b, "Client    : %s\n", valueOr(p.CustomerName, "Non renseigné"))
	fmt.Fprintf(&b, "Téléphone : %s\n", valueOr(p.Phone, "Non renseigné"))
	fmt.Fprintf(&b, "Produit   : %s\n", p.Product)
	fmt.Fprintf(&b, "Couverture: %s\n\n", valueOr(p.Coverage, "Non spécifiée"))
	for _, line := range p.Lines {
		fmt.Fprintf(&b, "  %-28s %s\n", line.Label, FormatXAF(line.Amount))
	}
	if len(p.Lines) > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "PRIME TOTALE : %s\n", FormatXAF(p.Amount))
	if p.PromoCode != "" {
		fmt.Fprintf(&b, "Code promo   : %s\n", p.PromoCode)
	}
	if p.Paid {
		b.WriteString("\nStatut : PAYÉ\n")
	} else {
		b.WriteString("\nStatut : EN ATTENTE DE PAIEMENT\n")
	}
	return []byte(b.String())
}

package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/covera/internal/document/domain"
)

// FormatXAF groups thousands with a space, "50000" becomes "50 000 FCFA".
func FormatXAF(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + " FCFA"
}

func issuedAt(p domain.Proposal) string {
	at := p.IssuedAt
	if at.IsZero() {
		at = time.Now()
	}
	return at.Format("02/01/2006 - 15:04")
}

func title(p domain.Proposal) string {
	if p.Paid {
		return "Reçu de paiement"
	}
	return "Proposition d'assurance"
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

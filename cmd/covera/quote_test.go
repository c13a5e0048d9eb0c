package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuoteAutoCommand(t *testing.T) {
	out, err := runCommand(t, "quote", "auto", "--power", "5", "--seats", "5")
	require.NoError(t, err)

	var quote struct {
		Annual struct {
			Total int64 `json:"PRIME_TOTALE"`
		} `json:"OFFRE_12_MOIS"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &quote))
	assert.Equal(t, int64(189064), quote.Annual.Total)
}

func TestQuoteAutoCommandRejectsInconsistentUsage(t *testing.T) {
	_, err := runCommand(t, "quote", "auto", "--power", "5", "--model", "taxi", "--usage", "promenade")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRANSPORT PUBLIC VOYAGEURS")
}

func TestQuoteTravelCommand(t *testing.T) {
	out, err := runCommand(t, "quote", "travel",
		"--category", "particulier", "--zone", "europe", "--product", "schengen exclusif", "--days", "7")
	require.NoError(t, err)
	assert.Contains(t, out, `"prime": 14500`)
}

func TestQuoteHomeCommand(t *testing.T) {
	out, err := runCommand(t, "quote", "home", "--tier", "confort")
	require.NoError(t, err)
	assert.Contains(t, out, "plafond 55000000 FCFA")
}

func TestQuoteTravelCatalog(t *testing.T) {
	out, err := runCommand(t, "quote", "travel", "--catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "PELERIN")
}

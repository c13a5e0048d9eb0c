package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnergySynonyms(t *testing.T) {
	e, err := ParseEnergy(" Gazole ")
	require.NoError(t, err)
	assert.Equal(t, EnergyDiesel, e)

	_, err = ParseEnergy("electrique")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "energy", verr.Field)
	assert.Contains(t, verr.Allowed, "DIESEL")
}

func TestResolveUsageForcesPublicTransport(t *testing.T) {
	u, err := ResolveUsage(ModelTaxi, "")
	require.NoError(t, err)
	assert.Equal(t, UsagePublicPassenger, u)

	u, err = ResolveUsage(ModelMiniBus, "transport public voyageurs")
	require.NoError(t, err)
	assert.Equal(t, UsagePublicPassenger, u)

	_, err = ResolveUsage(ModelCoaster, "PROMENADE/AFFAIRES")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentUse))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestResolveUsagePrivateModels(t *testing.T) {
	u, err := ResolveUsage(ModelVoiture, "Promenade/Affaires")
	require.NoError(t, err)
	assert.Equal(t, UsagePrivate, u)

	_, err = ResolveUsage(ModelVoiture, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCanonicalCodes(t *testing.T) {
	assert.Equal(t, "PELERIN", CanonicalTravelCategory("pèlerin"))
	assert.Equal(t, "travailleur_independant", CanonicalStatusCode("Travailleur Indépendant"))
	assert.Equal(t, "equilibre", CanonicalTierCode("  Équilibre "))
	assert.Equal(t, "confort", CanonicalTierCode("CONFORT"))
}

func TestParseTerm(t *testing.T) {
	term, err := ParseTerm("OFFRE_6_MOIS")
	require.NoError(t, err)
	assert.Equal(t, Term6Months, term)
	assert.Equal(t, 6, term.Months())

	_, err = ParseTerm("2 ans")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

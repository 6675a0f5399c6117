package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FoldsCaseAndDiacritics(t *testing.T) {
	assert.Equal(t, Normalize("sao paulo"), Normalize("São Paulo"))
	assert.Equal(t, Normalize("sao paulo"), Normalize("SÃO PAULO"))
	assert.Equal(t, "cote", Normalize("Côté"))
}

func TestSearch_SubstringAnywhere(t *testing.T) {
	list := []string{"Springfield Elementary", "Shelbyville High", "West Springfield Middle"}

	got := Search(list, "spring", 0)
	assert.Equal(t, []string{"Springfield Elementary", "West Springfield Middle"}, got)
}

func TestSearch_DiacriticInsensitive(t *testing.T) {
	list := []string{"Escuela Simón Bolívar", "Lincoln High"}

	assert.Equal(t, []string{"Escuela Simón Bolívar"}, Search(list, "simon bol", 0))
	assert.Equal(t, []string{"Escuela Simón Bolívar"}, Search(list, "SIMÓN", 0))
}

func TestSearch_EmptyQueryMatchesNothing(t *testing.T) {
	list := []string{"A", "B"}
	assert.Nil(t, Search(list, "", 10))
	assert.Nil(t, Search(list, "   ", 10))
}

func TestSearch_NoMatchIsEmptyNotNil(t *testing.T) {
	got := Search([]string{"Lincoln High"}, "zzz", 10)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearch_LimitAndOrder(t *testing.T) {
	list := []string{"Oak 1", "Oak 2", "Pine", "Oak 3", "Oak 4"}

	assert.Equal(t, []string{"Oak 1", "Oak 2", "Oak 3"}, Search(list, "oak", 3))
}

func TestSearch_SkipsNormalizedDuplicates(t *testing.T) {
	list := []string{"Lincoln High", "LINCOLN HIGH", "Lincoln High "}

	assert.Equal(t, []string{"Lincoln High"}, Search(list, "lincoln", 0))
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"  Alpha ", "", "alpha", "Beta", "   ", "Gamma", "Delta"}, 3)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, got)

	assert.Empty(t, Dedupe(nil, 5))
	assert.Len(t, Dedupe([]string{"a", "b", "c"}, 0), 3)
}

func TestListProvider_LoadsAndSearches(t *testing.T) {
	fetcher := &countingFetcher{lists: map[ListID][]string{
		ListDistricts: {"Austin ISD", "Dallas ISD", "Austin Charter"},
	}}
	provider := ListProvider(NewRefData(fetcher, nil), ListDistricts, 10)

	got, err := provider(context.Background(), "austin")
	require.NoError(t, err)
	assert.Equal(t, []string{"Austin ISD", "Austin Charter"}, got)

	_, err = provider(context.Background(), "dallas")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls(ListDistricts))
}

func TestListProvider_PropagatesLoadError(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("boom")}
	provider := ListProvider(NewRefData(fetcher, nil), ListSchools, 10)

	got, err := provider(context.Background(), "x")
	assert.Error(t, err)
	assert.Nil(t, got)
}

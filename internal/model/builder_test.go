package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

func TestBookBuilder_Build(t *testing.T) {
	t.Parallel()

	book, err := model.NewBookBuilder().
		Kind(model.KindRare).
		Title("First Folio").
		Author("Shakespeare").
		YearPublished(1623).
		Quantity(1).
		EstimatedValue(250000).
		RarityLevel(9).
		HandlingNotes("gloves only").
		Build()
	require.NoError(t, err)
	require.Equal(t, model.KindRare, book.Kind)
	require.NotNil(t, book.Rare)
	require.Nil(t, book.General)
	require.Nil(t, book.Ancient)
	require.True(t, book.Rare.RequiresGloves())

	_, err = model.NewBookBuilder().
		Kind("paperback").
		Title("X").
		Author("Y").
		YearPublished(2000).
		Quantity(1).
		Build()
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestBookBuilder_Directors(t *testing.T) {
	t.Parallel()

	fiction, err := model.BuildStandardFiction("Dune", "Herbert", 1965, "SF")
	require.NoError(t, err)
	require.Equal(t, model.KindGeneral, fiction.Kind)
	require.False(t, fiction.General.Bestseller)
	require.Equal(t, 21, fiction.LendingPeriodDays())

	best, err := model.BuildBestseller("Dune", "Herbert", 1965, "SF")
	require.NoError(t, err)
	require.True(t, best.General.Bestseller)
	require.Equal(t, 14, best.LendingPeriodDays())

	rare, err := model.BuildValuableRare("First Folio", "Shakespeare", 1623, 250000, 9)
	require.NoError(t, err)
	require.Equal(t, model.KindRare, rare.Kind)
	require.InDelta(t, 250000, rare.Rare.EstimatedValue, 1e-9)

	ancient, err := model.BuildAncientManuscript("Codex", "Unknown", 900, "Byzantium", "Greek")
	require.NoError(t, err)
	require.Equal(t, model.KindAncient, ancient.Kind)
	require.NotEmpty(t, ancient.Ancient.PreservationRequirements)
}

package sqlite

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductRepositoryLookupAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(openTestDB(t))

	missing, err := repo.FindByUID(ctx, "ABC1234")
	require.NoError(t, err)
	assert.Nil(t, missing)

	amp, err := repo.Create(ctx, domain.Product{UID: "ABC1234", Name: "Ampli X", SerialNumber: "SN-1", Manufacturer: "Yamaha"})
	require.NoError(t, err)
	assert.NotZero(t, amp.ID)
	assert.Equal(t, domain.SituationInStock, amp.Situation)

	_, err = repo.Create(ctx, domain.Product{UID: "DEF5678", Name: "Console", SerialNumber: "SN-2", Situation: domain.SituationRented})
	require.NoError(t, err)

	found, err := repo.FindByUID(ctx, "ABC1234")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, amp.ID, found.ID)
	assert.Equal(t, "Yamaha", found.Manufacturer)

	exists, err := repo.ExistsByUID(ctx, "DEF5678")
	require.NoError(t, err)
	assert.True(t, exists)

	rented, err := repo.List(ctx, domain.ProductFilter{Situation: domain.SituationRented})
	require.NoError(t, err)
	require.Len(t, rented, 1)
	assert.Equal(t, "Console", rented[0].Name)

	byQuery, err := repo.List(ctx, domain.ProductFilter{Query: "yamaha"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "ABC1234", byQuery[0].UID)

	all, err := repo.List(ctx, domain.ProductFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProductRepositoryRejectsDuplicateUID(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(openTestDB(t))

	_, err := repo.Create(ctx, domain.Product{UID: "ABC1234", Name: "A"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, domain.Product{UID: "ABC1234", Name: "B"})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestProductRepositoryUpdateSituation(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(openTestDB(t))

	p, err := repo.Create(ctx, domain.Product{UID: "ABC1234", Name: "A"})
	require.NoError(t, err)

	updated, err := repo.UpdateSituation(ctx, p.ID, domain.SituationInSAV)
	require.NoError(t, err)
	assert.Equal(t, domain.SituationInSAV, updated.Situation)

	_, err = repo.UpdateSituation(ctx, 999, domain.SituationInSAV)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

package sqlite

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIntervention(t *testing.T, ctx context.Context, repos domain.Repositories) (domain.Product, domain.Intervention) {
	t.Helper()
	p, err := repos.Products.Create(ctx, domain.Product{UID: "ABC1234", Name: "Ampli X", SerialNumber: "SN-1"})
	require.NoError(t, err)
	iv, err := repos.Interventions.Create(ctx, domain.Intervention{ProductID: p.ID, SerialNumber: p.SerialNumber, FaultDescription: "no sound"})
	require.NoError(t, err)
	return p, iv
}

func TestServiceRequestRepositoryCreateForcesPending(t *testing.T) {
	ctx := context.Background()
	repo := NewServiceRequestRepository(openTestDB(t))

	req, err := repo.Create(ctx, domain.ServiceRequest{
		Status:           domain.RequestValidated,
		Type:             domain.RequestUnknownProduct,
		ProductName:      "Ampli X",
		ProductSerial:    "SN-1",
		OwnerType:        domain.OwnerClient,
		OwnerName:        "Dupont",
		FaultDescription: "no sound",
		RequesterName:    "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, req.Status)
	assert.Nil(t, req.ValidatedAt)
	assert.Nil(t, req.InterventionID)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerClient, got.OwnerType)
	assert.Equal(t, "Dupont", got.OwnerName)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServiceRequestRepositoryListPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repos := repositoriesFor(db)
	_, iv := seedIntervention(t, ctx, repos)

	first, err := repos.Requests.Create(ctx, domain.ServiceRequest{Type: domain.RequestUnknownProduct, ProductName: "A", FaultDescription: "f", RequesterName: "r"})
	require.NoError(t, err)
	second, err := repos.Requests.Create(ctx, domain.ServiceRequest{Type: domain.RequestUnknownProduct, ProductName: "B", FaultDescription: "f", RequesterName: "r"})
	require.NoError(t, err)
	third, err := repos.Requests.Create(ctx, domain.ServiceRequest{Type: domain.RequestUnknownProduct, ProductName: "C", FaultDescription: "f", RequesterName: "r"})
	require.NoError(t, err)

	_, err = repos.Requests.Validate(ctx, second.ID, "Bob", "ok", iv.ID)
	require.NoError(t, err)

	pending, err := repos.Requests.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)

	validated, err := repos.Requests.List(ctx, domain.ServiceRequestFilter{Status: domain.RequestValidated})
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, second.ID, validated[0].ID)
}

func TestServiceRequestRepositoryResolutionIsFinal(t *testing.T) {
	ctx := context.Background()
	repos := repositoriesFor(openTestDB(t))
	_, iv := seedIntervention(t, ctx, repos)

	req, err := repos.Requests.Create(ctx, domain.ServiceRequest{Type: domain.RequestUnknownProduct, ProductName: "A", FaultDescription: "f", RequesterName: "r"})
	require.NoError(t, err)

	validated, err := repos.Requests.Validate(ctx, req.ID, "Bob", "go", iv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestValidated, validated.Status)
	assert.Equal(t, "Bob", validated.ValidatorName)
	require.NotNil(t, validated.ValidatedAt)
	require.NotNil(t, validated.InterventionID)
	assert.Equal(t, iv.ID, *validated.InterventionID)

	_, err = repos.Requests.Reject(ctx, req.ID, "Carol", "late")
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = repos.Requests.Validate(ctx, req.ID, "Carol", "again", iv.ID)
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = repos.Requests.Reject(ctx, 999, "Carol", "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	unchanged, err := repos.Requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", unchanged.ValidatorName)
	assert.Equal(t, "go", unchanged.ValidationNotes)
}

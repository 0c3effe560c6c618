package application

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/atvirokodosprendimai/magsav/internal/adapters/db/sqlite"
	"github.com/atvirokodosprendimai/magsav/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "magsav_app_test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	_, err = sqlite.RunMigrations(context.Background(), db)
	require.NoError(t, err)
	return db
}

func TestAcceptCommitsAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	uow := sqlite.NewUnitOfWork(db)
	access := NewAccessService(sqlite.NewAccessRepository(db), nil)
	requests := NewRequestService(uow.Repositories().Requests, uow.Repositories().Products)
	lifecycle := NewLifecycleService(uow, NewProvisioner(NewUIDGenerator(0)), NewOpener(), access, nil)

	req, err := requests.Create(ctx, CreateRequestInput{
		Type:             domain.RequestUnknownProduct,
		ProductName:      "Scanner X",
		ProductSerial:    "SN-001",
		FaultDescription: "paper jam",
		RequesterName:    "Alice",
	})
	require.NoError(t, err)

	res, err := lifecycle.Accept(ctx, AcceptInput{RequestID: req.ID, CreateProductIfUnknown: true, ValidatorName: "Bob"})
	require.NoError(t, err)
	assert.True(t, res.ProductCreated)
	assert.Equal(t, res.Product.UID, res.Intervention.ProductUID)

	stored, err := requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestValidated, stored.Status)
	require.NotNil(t, stored.InterventionID)
	assert.Equal(t, res.Intervention.ID, *stored.InterventionID)

	logs, err := access.ListAuditLogs(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "request.accept", logs[0].Action)

	_, err = lifecycle.Accept(ctx, AcceptInput{RequestID: req.ID, CreateProductIfUnknown: true, ValidatorName: "Carol"})
	require.ErrorIs(t, err, domain.ErrConflict)

	products, err := uow.Repositories().Products.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestConcurrentAcceptsResolveOnce(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	uow := sqlite.NewUnitOfWork(db)
	requests := NewRequestService(uow.Repositories().Requests, uow.Repositories().Products)
	lifecycle := NewLifecycleService(uow, NewProvisioner(NewUIDGenerator(0)), NewOpener(), nil, nil)

	req, err := requests.Create(ctx, CreateRequestInput{
		Type:             domain.RequestUnknownProduct,
		ProductName:      "Scanner X",
		ProductSerial:    "SN-001",
		FaultDescription: "paper jam",
		RequesterName:    "Alice",
	})
	require.NoError(t, err)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = lifecycle.Accept(ctx, AcceptInput{
				RequestID:              req.ID,
				CreateProductIfUnknown: true,
				ValidatorName:          fmt.Sprintf("validator-%d", i),
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, ok)

	products, err := uow.Repositories().Products.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, products, 1)

	interventions, err := uow.Repositories().Interventions.List(ctx, domain.InterventionFilter{})
	require.NoError(t, err)
	assert.Len(t, interventions, 1)

	stored, err := requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestValidated, stored.Status)
}

func TestAcceptRollsBackProductWhenInterventionInsertFails(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	uow := sqlite.NewUnitOfWork(db)
	requests := NewRequestService(uow.Repositories().Requests, uow.Repositories().Products)
	lifecycle := NewLifecycleService(uow, NewProvisioner(NewUIDGenerator(0)), NewOpener(), nil, nil)

	req, err := requests.Create(ctx, CreateRequestInput{
		Type:             domain.RequestUnknownProduct,
		ProductName:      "Scanner X",
		ProductSerial:    "SN-001",
		FaultDescription: "paper jam",
		RequesterName:    "Alice",
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
CREATE TRIGGER fail_intervention_insert BEFORE INSERT ON interventions
BEGIN
    SELECT RAISE(ABORT, 'interventions are read-only');
END;`).Error)

	_, err = lifecycle.Accept(ctx, AcceptInput{RequestID: req.ID, CreateProductIfUnknown: true, ValidatorName: "Bob"})
	require.ErrorIs(t, err, domain.ErrStorage)

	stored, err := requests.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, stored.Status)
	assert.Nil(t, stored.InterventionID)

	products, err := uow.Repositories().Products.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)

	interventions, err := uow.Repositories().Interventions.List(ctx, domain.InterventionFilter{})
	require.NoError(t, err)
	assert.Empty(t, interventions)
}

package cvr

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLocker is a mock implementation of Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

// failingSources fails listing payment applications with a broken connection
type failingSources struct {
	cvr.SourceDocumentRepository
}

func (f failingSources) ListPaymentApplications(context.Context, cvr.SourceFilter, uuid.UUID, int) ([]cvr.PaymentApplication, error) {
	return nil, driver.ErrBadConn
}

// cancellingCommitments cancels the pass on the nth insert, mid sub-batch
type cancellingCommitments struct {
	cvr.CommitmentFactRepository
	cancel  context.CancelFunc
	cancelN int
	inserts int
}

func (c *cancellingCommitments) InsertIfAbsent(ctx context.Context, fact *cvr.CommitmentFact) (bool, error) {
	c.inserts++
	if c.inserts == c.cancelN {
		c.cancel()
		return false, ctx.Err()
	}
	return c.CommitmentFactRepository.InsertIfAbsent(ctx, fact)
}

// invisibleCommitments reports every insert as a conflict with a row it never returns
type invisibleCommitments struct {
	cvr.CommitmentFactRepository
	inserts int
}

func (c *invisibleCommitments) FindByKey(context.Context, cvr.FactKey) (*cvr.CommitmentFact, error) {
	return nil, cvr.ErrFactNotFound
}

func (c *invisibleCommitments) InsertIfAbsent(context.Context, *cvr.CommitmentFact) (bool, error) {
	c.inserts++
	return false, nil
}

// invisibleActuals is invisibleCommitments for actual facts
type invisibleActuals struct {
	cvr.ActualFactRepository
	inserts int
}

func (a *invisibleActuals) FindByKey(context.Context, cvr.FactKey) (*cvr.ActualFact, error) {
	return nil, cvr.ErrFactNotFound
}

func (a *invisibleActuals) InsertIfAbsent(context.Context, *cvr.ActualFact) (bool, error) {
	a.inserts++
	return false, nil
}

func TestBackfill_CreatesFactsAndPosition(t *testing.T) {
	env := newLedgerEnv(t)
	pkg := env.addPackage("Groundworks")
	env.addBudgetLine(&pkg, "100000")
	contract := env.addContract(&pkg, "signed", "60000")
	afp := env.addAFP(&contract, "CERTIFIED", "20000")

	report := env.backfill()

	assert.Equal(t, cvr.ReconcileCounts{Created: 1}, report.Commitments)
	assert.Equal(t, cvr.ReconcileCounts{Created: 1}, report.Actuals)
	assert.Equal(t, 1, report.PackagesRecomputed)
	assert.False(t, report.Interrupted)
	assert.Empty(t, report.Errors)

	pos := env.position()
	assert.True(t, dec("100000").Equal(pos.TotalBudget))
	assert.True(t, dec("60000").Equal(pos.TotalCommitted))
	assert.True(t, dec("20000").Equal(pos.TotalActual))
	assert.True(t, dec("40000").Equal(pos.TotalVariance), pos.TotalVariance.String())
	assert.True(t, dec("80000").Equal(pos.TotalRemaining), pos.TotalRemaining.String())

	entry := pos.Entry(pkg.String())
	require.NotNil(t, entry)
	assert.Equal(t, "Groundworks", entry.PackageName)

	fact := env.actual(afp)
	assert.Equal(t, cvr.FactStatusCertified, fact.Status)
	assert.Equal(t, &pkg, fact.PackageID)

	assert.Contains(t, env.events.types(), cvr.EventTypeCommitmentFactRecorded)
	assert.Contains(t, env.events.types(), cvr.EventTypeActualFactRecorded)
	assert.Contains(t, env.events.types(), cvr.EventTypeBackfillCompleted)
}

func TestBackfill_SecondRunIsNoOp(t *testing.T) {
	env := newLedgerEnv(t)
	pkg := env.addPackage("Frame")
	// more documents than one sub-batch
	for i := 0; i < 5; i++ {
		c := env.addContract(&pkg, "active", "1000")
		env.addAFP(&c, "PAID", "500")
	}

	first := env.backfill()
	assert.Equal(t, 5, first.Commitments.Created)
	assert.Equal(t, 5, first.Actuals.Created)
	before := env.position()

	second := env.backfill()
	assert.Equal(t, cvr.ReconcileCounts{Skipped: 5}, second.Commitments)
	assert.Equal(t, cvr.ReconcileCounts{Skipped: 5}, second.Actuals)
	assert.False(t, second.HasChanges())

	after := env.position()
	assert.True(t, before.TotalCommitted.Equal(after.TotalCommitted))
	assert.True(t, before.TotalActual.Equal(after.TotalActual))
	assert.True(t, dec("2500").Equal(env.packageActualCost(pkg)))
}

func TestBackfill_StatusTransitions(t *testing.T) {
	t.Run("draft contract becomes signed", func(t *testing.T) {
		env := newLedgerEnv(t)
		contract := env.addContract(nil, "draft", "45000")

		report := env.backfill()
		assert.Equal(t, 1, report.Commitments.Skipped)
		assert.True(t, env.position().TotalCommitted.IsZero())

		env.setContractStatus(contract, "signed")
		report = env.backfill()
		assert.Equal(t, 1, report.Commitments.Created)
		assert.True(t, dec("45000").Equal(env.position().TotalCommitted))
	})

	t.Run("cancelled AFP voids its fact", func(t *testing.T) {
		env := newLedgerEnv(t)
		contract := env.addContract(nil, "signed", "90000")
		afp := env.addAFP(&contract, "CERTIFIED", "30000")
		env.backfill()
		assert.True(t, dec("30000").Equal(env.position().TotalActual))

		env.setAFP(afp, map[string]any{"status": "CANCELLED"})
		report := env.backfill()
		assert.Equal(t, 1, report.Actuals.Updated)

		fact := env.actual(afp)
		assert.Equal(t, cvr.FactStatusVoid, fact.Status)
		assert.True(t, dec("30000").Equal(fact.Amount))
		assert.True(t, env.position().TotalActual.IsZero())
		assert.Contains(t, env.events.types(), cvr.EventTypeFactStatusChanged)
	})

	t.Run("payment keeps the snapshot amount", func(t *testing.T) {
		env := newLedgerEnv(t)
		pkg := env.addPackage("Roofing")
		contract := env.addContract(&pkg, "active", "50000")
		afp := env.addAFP(&contract, "CERTIFIED", "20000")
		env.backfill()
		assert.True(t, env.packageActualCost(pkg).IsZero())

		paidAt := testNow.Add(-time.Hour)
		env.setAFP(afp, map[string]any{"status": "PAID", "amount_paid": dec("25000"), "paid_date": paidAt})
		report := env.backfill()
		assert.Equal(t, 1, report.Actuals.Updated)

		fact := env.actual(afp)
		assert.Equal(t, cvr.FactStatusPaid, fact.Status)
		assert.True(t, dec("20000").Equal(fact.Amount), fact.Amount.String())
		require.NotNil(t, fact.PaidDate)
		assert.True(t, paidAt.Equal(*fact.PaidDate))
		assert.True(t, dec("20000").Equal(env.packageActualCost(pkg)))
	})
}

func TestBackfill_UnallocatedAndUnknownPackages(t *testing.T) {
	env := newLedgerEnv(t)
	env.addBudgetLine(nil, "5000")
	env.addContract(nil, "signed", "3000")
	ghost := uuid.New()
	env.addContract(&ghost, "signed", "700")
	env.backfill()

	pos := env.position()
	unallocated := pos.Entry(cvr.UnallocatedPackageKey)
	require.NotNil(t, unallocated)
	assert.Equal(t, cvr.UnallocatedPackageName, unallocated.PackageName)
	assert.True(t, dec("3000").Equal(unallocated.Committed))
	assert.True(t, dec("5000").Equal(unallocated.Budget))

	unknown := pos.Entry(ghost.String())
	require.NotNil(t, unknown)
	assert.Equal(t, cvr.UnknownPackageName, unknown.PackageName)
}

func TestBackfill_SkipsDataGaps(t *testing.T) {
	env := newLedgerEnv(t)
	orphan := env.addAFP(nil, "CERTIFIED", "1200")
	env.addContract(nil, "signed", "800")

	report := env.backfill()

	assert.Equal(t, 1, report.Commitments.Created)
	assert.Equal(t, 1, report.Actuals.Skipped)
	require.Len(t, report.Skips, 1)
	assert.Equal(t, orphan, report.Skips[0].SourceID)
	assert.Equal(t, cvr.SourceTypePaymentApplication, report.Skips[0].SourceType)

	_, err := env.repos.Actuals.FindByKey(context.Background(), cvr.FactKey{
		TenantID: env.tenantID, SourceType: cvr.SourceTypePaymentApplication, SourceID: orphan,
	})
	assert.ErrorIs(t, err, cvr.ErrFactNotFound)
}

func TestBackfill_TenantIsolation(t *testing.T) {
	env := newLedgerEnv(t)
	env.addContract(nil, "signed", "1000")

	other := *env
	other.tenantID = uuid.New()
	other.addContract(nil, "signed", "9999")

	report := env.backfill()
	assert.Equal(t, 1, report.Commitments.Created)
	assert.True(t, dec("1000").Equal(env.position().TotalCommitted))
	assert.True(t, other.position().TotalCommitted.IsZero())
}

func TestBackfill_Lock(t *testing.T) {
	t.Run("busy lock rejects the run", func(t *testing.T) {
		locker := new(MockLocker)
		env := newLedgerEnv(t, WithLocker(locker))
		locker.On("TryLock", mock.Anything, "backfill:"+env.tenantID.String(), 30*time.Minute).
			Return("", false, nil)

		report, err := env.rec.Backfill(context.Background(), env.scope())
		assert.Nil(t, report)
		assert.ErrorIs(t, err, cvr.ErrBackfillInProgress)
		locker.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lock is released after the run", func(t *testing.T) {
		locker := new(MockLocker)
		env := newLedgerEnv(t, WithLocker(locker))
		key := "backfill:" + env.tenantID.String()
		locker.On("TryLock", mock.Anything, key, 30*time.Minute).Return("tok", true, nil)
		locker.On("Unlock", mock.Anything, key, "tok").Return(nil)

		env.backfill()
		locker.AssertExpectations(t)
	})

	t.Run("lock backend failure does not block the run", func(t *testing.T) {
		locker := new(MockLocker)
		env := newLedgerEnv(t, WithLocker(locker))
		locker.On("TryLock", mock.Anything, mock.Anything, mock.Anything).
			Return("", false, errors.New("redis: connection refused"))
		env.addContract(nil, "signed", "10")

		report := env.backfill()
		assert.Equal(t, 1, report.Commitments.Created)
	})
}

func TestBackfill_FatalErrorReturnsPartialReport(t *testing.T) {
	env := newLedgerEnv(t)
	env.addContract(nil, "signed", "100")
	env.addContract(nil, "active", "200")

	repos := env.repos
	repos.Sources = failingSources{env.repos.Sources}
	rec := NewReconciler(repos, cvr.NewDerivationSchema(cvr.NewDeriver("GBP")), ReconcilerConfig{}, env.rec.logger)

	report, err := rec.Backfill(context.Background(), env.scope())
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrBadConn)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Commitments.Created)
	assert.Zero(t, report.PackagesRecomputed)

	runs, err := rec.RecentRuns(context.Background(), env.tenantID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cvr.BackfillRunFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestBackfill_CancelledContextInterrupts(t *testing.T) {
	env := newLedgerEnv(t)
	env.addContract(nil, "signed", "100")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := env.rec.Backfill(ctx, env.scope())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)

	runs, err := env.rec.RecentRuns(context.Background(), env.tenantID, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cvr.BackfillRunInterrupted, runs[0].Status)
}

func TestBackfill_DerivationErrorDoesNotAbort(t *testing.T) {
	env := newLedgerEnv(t)
	// seven contracts span four sub-batches of two
	for i := 0; i < 3; i++ {
		env.addContract(nil, "signed", "100")
	}
	bad := env.addContract(nil, "bogus-status", "5000")
	for i := 0; i < 3; i++ {
		env.addContract(nil, "active", "10")
	}

	report := env.backfill()

	assert.Equal(t, cvr.ReconcileCounts{Created: 6, Errors: 1}, report.Commitments)
	assert.False(t, report.Interrupted)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad, report.Errors[0].SourceID)
	assert.Equal(t, cvr.SourceTypeContract, report.Errors[0].SourceType)
	assert.Equal(t, cvr.CodeDerivationFailed, report.Errors[0].Code)
	assert.Contains(t, report.Errors[0].Message, "bogus-status")

	_, err := env.repos.Commitments.FindByKey(context.Background(),
		cvr.FactKey{TenantID: env.tenantID, SourceType: cvr.SourceTypeContract, SourceID: bad})
	assert.ErrorIs(t, err, cvr.ErrFactNotFound)
	assert.True(t, dec("330").Equal(env.position().TotalCommitted), env.position().TotalCommitted.String())

	runs, err := env.rec.RecentRuns(context.Background(), env.tenantID, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cvr.BackfillRunCompleted, runs[0].Status)
}

func TestBackfill_CancelMidBatchInterrupts(t *testing.T) {
	env := newLedgerEnv(t)
	env.addContract(nil, "signed", "100")
	env.addContract(nil, "active", "200")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repos := env.repos
	commitments := &cancellingCommitments{CommitmentFactRepository: env.repos.Commitments, cancel: cancel, cancelN: 2}
	repos.Commitments = commitments
	rec := NewReconciler(repos, cvr.NewDerivationSchema(cvr.NewDeriver("GBP")), ReconcilerConfig{BatchSize: 2}, env.rec.logger)

	report, err := rec.Backfill(ctx, env.scope())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Commitments.Created)

	runs, err := rec.RecentRuns(context.Background(), env.tenantID, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, cvr.BackfillRunInterrupted, runs[0].Status)
}

func TestBackfill_InsertConflictRetriesAreBounded(t *testing.T) {
	env := newLedgerEnv(t)
	contract := env.addContract(nil, "signed", "100")
	afp := env.addAFP(&contract, "CERTIFIED", "40")

	repos := env.repos
	commitments := &invisibleCommitments{CommitmentFactRepository: env.repos.Commitments}
	actuals := &invisibleActuals{ActualFactRepository: env.repos.Actuals}
	repos.Commitments = commitments
	repos.Actuals = actuals
	rec := NewReconciler(repos, cvr.NewDerivationSchema(cvr.NewDeriver("GBP")),
		ReconcilerConfig{BatchSize: 2, MaxStatusRetries: 2}, env.rec.logger)

	report, err := rec.Backfill(context.Background(), env.scope())
	require.NoError(t, err)

	assert.Equal(t, cvr.ReconcileCounts{Errors: 1}, report.Commitments)
	assert.Equal(t, cvr.ReconcileCounts{Errors: 1}, report.Actuals)
	assert.Equal(t, 3, commitments.inserts)
	assert.Equal(t, 3, actuals.inserts)
	require.Len(t, report.Errors, 2)
	for _, issue := range report.Errors {
		assert.Equal(t, shared.ErrConcurrencyConflict.Code, issue.Code)
	}
	assert.ElementsMatch(t, []uuid.UUID{contract, afp},
		[]uuid.UUID{report.Errors[0].SourceID, report.Errors[1].SourceID})
}

func TestBackfill_RequiresTenant(t *testing.T) {
	env := newLedgerEnv(t)
	_, err := env.rec.Backfill(context.Background(), cvr.BackfillScope{})
	assert.ErrorIs(t, err, cvr.ErrMissingTenant)
}

func TestReconcileDocument(t *testing.T) {
	t.Run("creates then skips", func(t *testing.T) {
		env := newLedgerEnv(t)
		contract := env.addContract(nil, "signed", "7000")

		res, err := env.rec.ReconcileDocument(context.Background(), env.tenantID, cvr.SourceTypeContract, contract)
		require.NoError(t, err)
		assert.Equal(t, cvr.OutcomeCreated, res.Outcome)
		assert.Equal(t, cvr.FactStatusSigned, res.Status)

		res, err = env.rec.ReconcileDocument(context.Background(), env.tenantID, cvr.SourceTypeContract, contract)
		require.NoError(t, err)
		assert.Equal(t, cvr.OutcomeSkipped, res.Outcome)
	})

	t.Run("deleted source voids the fact", func(t *testing.T) {
		env := newLedgerEnv(t)
		contract := env.addContract(nil, "active", "7000")
		env.backfill()
		require.NoError(t, env.db.Exec("DELETE FROM contracts WHERE id = ?", contract).Error)

		res, err := env.rec.ReconcileDocument(context.Background(), env.tenantID, cvr.SourceTypeContract, contract)
		require.NoError(t, err)
		assert.Equal(t, cvr.OutcomeUpdated, res.Outcome)
		assert.Equal(t, cvr.FactStatusVoid, env.commitment(contract).Status)
	})

	t.Run("paid AFP recomputes its package", func(t *testing.T) {
		env := newLedgerEnv(t)
		pkg := env.addPackage("Cladding")
		contract := env.addContract(&pkg, "signed", "9000")
		afp := env.addAFP(&contract, "PAID", "4000")

		res, err := env.rec.ReconcileDocument(context.Background(), env.tenantID, cvr.SourceTypePaymentApplication, afp)
		require.NoError(t, err)
		assert.Equal(t, cvr.OutcomeCreated, res.Outcome)
		assert.True(t, dec("4000").Equal(env.packageActualCost(pkg)))
	})

	t.Run("unresolved project is skipped", func(t *testing.T) {
		env := newLedgerEnv(t)
		afp := env.addAFP(nil, "CERTIFIED", "10")

		res, err := env.rec.ReconcileDocument(context.Background(), env.tenantID, cvr.SourceTypePaymentApplication, afp)
		require.NoError(t, err)
		assert.Equal(t, cvr.OutcomeSkipped, res.Outcome)
		assert.NotEmpty(t, res.Reason)
	})

	t.Run("unsupported source type", func(t *testing.T) {
		env := newLedgerEnv(t)
		_, err := env.rec.ReconcileDocument(context.Background(), env.tenantID, cvr.SourceType("INVOICE"), uuid.New())
		assert.ErrorIs(t, err, cvr.ErrUnsupportedSourceType)
	})
}

func TestRederiveAmount(t *testing.T) {
	t.Run("re-snapshots from the current source", func(t *testing.T) {
		env := newLedgerEnv(t)
		pkg := env.addPackage("Drainage")
		contract := env.addContract(&pkg, "signed", "10000")
		afp := env.addAFP(&contract, "PAID", "3000")
		env.backfill()

		env.setAFP(afp, map[string]any{"amount_paid": dec("3500")})
		env.backfill()
		assert.True(t, dec("3000").Equal(env.actual(afp).Amount))

		view, err := env.rec.RederiveAmount(context.Background(), env.tenantID, cvr.SourceTypePaymentApplication, afp)
		require.NoError(t, err)
		assert.True(t, dec("3500").Equal(view.Amount), view.Amount.String())
		assert.True(t, dec("3500").Equal(env.packageActualCost(pkg)))
	})

	t.Run("ineligible source is rejected", func(t *testing.T) {
		env := newLedgerEnv(t)
		contract := env.addContract(nil, "signed", "10000")
		env.backfill()
		env.setContractStatus(contract, "cancelled")

		_, err := env.rec.RederiveAmount(context.Background(), env.tenantID, cvr.SourceTypeContract, contract)
		require.Error(t, err)
		assert.Equal(t, "INVALID_STATE", shared.CodeOf(err))
	})

	t.Run("missing fact", func(t *testing.T) {
		env := newLedgerEnv(t)
		contract := env.addContract(nil, "signed", "10000")

		_, err := env.rec.RederiveAmount(context.Background(), env.tenantID, cvr.SourceTypeContract, contract)
		assert.ErrorIs(t, err, cvr.ErrFactNotFound)
	})
}

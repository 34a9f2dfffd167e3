package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/reelbux/reelbux/models"
	testingutil "github.com/reelbux/reelbux/testing"
	"github.com/reelbux/reelbux/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTransactionRepoTest(t *testing.T) (*testingutil.TestDB, TransactionRepository, *models.Customer) {
	t.Helper()

	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("skipping: test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testDB.TeardownTestDB()
	})

	fixtures := testingutil.NewTestFixtures(testDB)
	customer, err := fixtures.CreateTestCustomer()
	require.NoError(t, err)

	return testDB, NewTransactionRepository(testDB.DB), customer
}

func newPendingTransaction(customerID uint, externalRef string) *models.Transaction {
	tx := &models.Transaction{
		CorrelationID: uuid.New(),
		Source:        models.TransactionSourceStripe,
		Kind:          models.TransactionKindFund,
		BalanceKind:   models.BalanceKindReelBux,
		Status:        models.PaymentStatusPending,
		Amount:        decimal.RequireFromString("10.00"),
		Currency:      utils.USDCurrency,
		CustomerID:    customerID,
		Description:   "card funding",
		CreatedAt:     utils.UTCNow(),
		UpdatedAt:     utils.UTCNow(),
	}
	if externalRef != "" {
		tx.ExternalReference = utils.ToPtr(externalRef)
	}
	return tx
}

func TestTransactionUpdateStatus(t *testing.T) {
	_, repo, customer := setupTransactionRepoTest(t)
	ctx := testingutil.CreateTestContext()

	tx := newPendingTransaction(customer.ID, "")
	require.NoError(t, repo.Save(ctx, tx))

	t.Run("pending to completed succeeds once", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, tx.ID, models.PaymentStatusPending, models.PaymentStatusCompleted)
		require.NoError(t, err)

		reloaded, err := repo.ByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusCompleted, reloaded.Status)
	})

	t.Run("second flip reports a conflict", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, tx.ID, models.PaymentStatusPending, models.PaymentStatusCompleted)
		assert.ErrorIs(t, err, ErrStatusConflict)
	})

	t.Run("stale expected status reports a conflict", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, tx.ID, models.PaymentStatusPending, models.PaymentStatusFailed)
		assert.ErrorIs(t, err, ErrStatusConflict)
	})
}

func TestTransactionExistsSettled(t *testing.T) {
	_, repo, customer := setupTransactionRepoTest(t)
	ctx := testingutil.CreateTestContext()

	t.Run("unknown reference is not settled", func(t *testing.T) {
		settled, err := repo.ExistsSettled(ctx, "evt_unknown")
		require.NoError(t, err)
		assert.False(t, settled)
	})

	t.Run("in-flight reference counts as settled", func(t *testing.T) {
		tx := newPendingTransaction(customer.ID, "evt_pending")
		require.NoError(t, repo.Save(ctx, tx))

		settled, err := repo.ExistsSettled(ctx, "evt_pending")
		require.NoError(t, err)
		assert.True(t, settled)
	})

	t.Run("failed reference is not settled", func(t *testing.T) {
		tx := newPendingTransaction(customer.ID, "evt_failed")
		require.NoError(t, repo.Save(ctx, tx))
		require.NoError(t, repo.UpdateStatus(ctx, tx.ID, models.PaymentStatusPending, models.PaymentStatusFailed))

		settled, err := repo.ExistsSettled(ctx, "evt_failed")
		require.NoError(t, err)
		assert.False(t, settled)
	})
}

func TestTransactionExternalReferenceUnique(t *testing.T) {
	_, repo, customer := setupTransactionRepoTest(t)
	ctx := testingutil.CreateTestContext()

	first := newPendingTransaction(customer.ID, "evt_dup")
	require.NoError(t, repo.Save(ctx, first))

	// A second live row with the same gateway reference must be rejected
	dup := newPendingTransaction(customer.ID, "evt_dup")
	assert.Error(t, repo.Save(ctx, dup))

	// Failed rows fall out of the index, so a retry after failure works
	require.NoError(t, repo.UpdateStatus(ctx, first.ID, models.PaymentStatusPending, models.PaymentStatusFailed))
	retry := newPendingTransaction(customer.ID, "evt_dup")
	assert.NoError(t, repo.Save(ctx, retry))
}

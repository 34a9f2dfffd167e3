package businessflow

import (
	"testing"

	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	testingutil "github.com/reelbux/reelbux/testing"
	"github.com/reelbux/reelbux/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flowTestEnv wires a purchase flow against a disposable database.
type flowTestEnv struct {
	db       *gorm.DB
	fixtures *testingutil.TestFixtures

	customerRepo repository.CustomerRepository
	walletRepo   repository.WalletRepository
	txRepo       repository.TransactionRepository
	grantRepo    repository.FilmAccessGrantRepository

	purchase PurchaseFlow
	wallet   WalletFlow
}

func setupFlowTest(t *testing.T) *flowTestEnv {
	t.Helper()

	testDB, err := testingutil.SetupTestDB()
	if err != nil {
		t.Skipf("skipping: test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testDB.TeardownTestDB()
	})

	customerRepo := repository.NewCustomerRepository(testDB.DB)
	filmRepo := repository.NewFilmRepository(testDB.DB)
	walletRepo := repository.NewWalletRepository(testDB.DB)
	txRepo := repository.NewTransactionRepository(testDB.DB)
	grantRepo := repository.NewFilmAccessGrantRepository(testDB.DB)
	auditRepo := repository.NewAuditLogRepository(testDB.DB)

	settlement := NewSettlementEngine(customerRepo, filmRepo, walletRepo, txRepo, grantRepo)

	return &flowTestEnv{
		db:           testDB.DB,
		fixtures:     testingutil.NewTestFixtures(testDB),
		customerRepo: customerRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		grantRepo:    grantRepo,
		purchase:     NewPurchaseFlow(customerRepo, filmRepo, walletRepo, txRepo, grantRepo, auditRepo, settlement, testDB.DB),
		wallet:       NewWalletFlow(customerRepo, walletRepo, txRepo, auditRepo, testDB.DB),
	}
}

func (env *flowTestEnv) balances(t *testing.T, customerID uint) *models.Wallet {
	t.Helper()
	wallet, err := env.walletRepo.GetOrCreate(testingutil.CreateTestContext(), customerID)
	require.NoError(t, err)
	return wallet
}

func TestPurchaseFilmWithReelBux(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	platform, err := env.fixtures.CreatePlatformAccount()
	require.NoError(t, err)
	filmmaker, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	affiliate, err := env.fixtures.CreateTestAffiliate()
	require.NoError(t, err)
	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	require.NoError(t, env.fixtures.FundWallet(viewer.ID, "50.00", "0"))

	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	resp, err := env.purchase.PurchaseFilmWithReelBux(ctx, &dto.PurchaseFilmRequest{
		CustomerID: viewer.ID,
		FilmUUID:   film.UUID.String(),
		DistroCode: *affiliate.DistroCode,
	}, metadata)
	require.NoError(t, err)

	assert.True(t, resp.AmountPaid.Equal(dec("10.00")))
	assert.True(t, resp.NewBalance.Equal(dec("40.00")))
	assert.Equal(t, string(models.GrantTypeBuy), resp.GrantType)
	assert.Nil(t, resp.ExpiresAt)
	assert.NotEmpty(t, resp.GrantUUID)

	// Payer debit plus the three-way split
	assert.True(t, env.balances(t, viewer.ID).ReelBuxBalance.Equal(dec("40.00")))
	assert.True(t, env.balances(t, filmmaker.ID).ReelBuxBalance.Equal(dec("7.00")))
	assert.True(t, env.balances(t, affiliate.ID).DistroBalance.Equal(dec("2.00")))
	assert.True(t, env.balances(t, platform.ID).ReelBuxBalance.Equal(dec("1.00")))

	// One logical payment: payer leg + filmmaker + commission + platform
	count, err := env.txRepo.Count(ctx, models.TransactionFilter{Status: utils.ToPtr(models.PaymentStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// Grant blocks a second buy
	exists, err := env.grantRepo.ActiveGrantExists(ctx, viewer.ID, film.ID, utils.UTCNow())
	require.NoError(t, err)
	assert.True(t, exists)

	// Film earnings aggregate bumped by the filmmaker share
	var updated models.Film
	require.NoError(t, env.db.First(&updated, film.ID).Error)
	assert.True(t, updated.TotalEarning.Equal(dec("7.00")))
	assert.True(t, updated.TotalBuyEarning.Equal(dec("7.00")))
	assert.True(t, updated.TotalRentEarning.IsZero())
}

func TestPurchaseFilmInsufficientFunds(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	_, err := env.fixtures.CreatePlatformAccount()
	require.NoError(t, err)
	filmmaker, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	require.NoError(t, env.fixtures.FundWallet(viewer.ID, "1.00", "0"))

	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	_, err = env.purchase.PurchaseFilmWithReelBux(ctx, &dto.PurchaseFilmRequest{
		CustomerID: viewer.ID,
		FilmUUID:   film.UUID.String(),
	}, metadata)
	require.Error(t, err)
	assert.True(t, IsInsufficientFunds(err))

	// Nothing moved: no debit, no legs, no grant
	assert.True(t, env.balances(t, viewer.ID).ReelBuxBalance.Equal(dec("1.00")))
	assert.True(t, env.balances(t, filmmaker.ID).ReelBuxBalance.IsZero())

	count, err := env.txRepo.Count(ctx, models.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	exists, err := env.grantRepo.ActiveGrantExists(ctx, viewer.ID, film.ID, utils.UTCNow())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPurchaseFilmTwiceRejected(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	_, err := env.fixtures.CreatePlatformAccount()
	require.NoError(t, err)
	filmmaker, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	require.NoError(t, env.fixtures.FundWallet(viewer.ID, "50.00", "0"))

	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	req := &dto.PurchaseFilmRequest{CustomerID: viewer.ID, FilmUUID: film.UUID.String()}

	_, err = env.purchase.PurchaseFilmWithReelBux(ctx, req, metadata)
	require.NoError(t, err)

	_, err = env.purchase.PurchaseFilmWithReelBux(ctx, req, metadata)
	require.Error(t, err)
	assert.True(t, IsFilmAlreadyOwned(err))

	// Only the first purchase was debited
	assert.True(t, env.balances(t, viewer.ID).ReelBuxBalance.Equal(dec("40.00")))
}

func TestRentFilmWithReelBux(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	_, err := env.fixtures.CreatePlatformAccount()
	require.NoError(t, err)
	filmmaker, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	require.NoError(t, env.fixtures.FundWallet(viewer.ID, "20.00", "0"))

	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	resp, err := env.purchase.RentFilmWithReelBux(ctx, &dto.RentFilmRequest{
		CustomerID: viewer.ID,
		FilmUUID:   film.UUID.String(),
	}, metadata)
	require.NoError(t, err)

	assert.True(t, resp.AmountPaid.Equal(dec("3.00")))
	assert.Equal(t, string(models.GrantTypeRent), resp.GrantType)
	require.NotNil(t, resp.ExpiresAt)
	assert.True(t, resp.ExpiresAt.After(utils.UTCNow()))

	// Rental earnings land in the rent column
	var updated models.Film
	require.NoError(t, env.db.First(&updated, film.ID).Error)
	assert.True(t, updated.TotalRentEarning.Equal(dec("2.10")))
	assert.True(t, updated.TotalBuyEarning.IsZero())
}

func TestTransferDistroToReelBux(t *testing.T) {
	env := setupFlowTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	customer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	require.NoError(t, env.fixtures.FundWallet(customer.ID, "0", "5.00"))

	resp, err := env.wallet.TransferDistroToReelBux(ctx, &dto.TransferDistroRequest{
		CustomerID: customer.ID,
		Amount:     dec("3.00"),
	}, metadata)
	require.NoError(t, err)

	assert.True(t, resp.ReelBuxBalance.Equal(dec("3.00")))
	assert.True(t, resp.DistroBalance.Equal(dec("2.00")))

	// Two system transfer legs share one correlation id
	legs, err := env.txRepo.ByFilter(ctx, models.TransactionFilter{
		Kind: utils.ToPtr(models.TransactionKindTransfer),
	}, "id ASC", 10, 0)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, legs[0].CorrelationID, legs[1].CorrelationID)
	assert.Equal(t, models.BalanceKindDistro, legs[0].BalanceKind)
	assert.Equal(t, models.BalanceKindReelBux, legs[1].BalanceKind)

	// Overdraw fails without touching balances
	_, err = env.wallet.TransferDistroToReelBux(ctx, &dto.TransferDistroRequest{
		CustomerID: customer.ID,
		Amount:     dec("10.00"),
	}, metadata)
	require.Error(t, err)
	assert.True(t, IsInsufficientFunds(err))
	assert.True(t, env.balances(t, customer.ID).DistroBalance.Equal(dec("2.00")))
}

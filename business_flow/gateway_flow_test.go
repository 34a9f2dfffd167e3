package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/app/services"
	"github.com/reelbux/reelbux/config"
	"github.com/reelbux/reelbux/models"
	"github.com/reelbux/reelbux/repository"
	testingutil "github.com/reelbux/reelbux/testing"
	"github.com/reelbux/reelbux/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

// fakeStripeGateway parses webhook payloads without signature checks
// and serves a canned fee breakdown.
type fakeStripeGateway struct {
	fees *services.FeeBreakdown
}

func (g *fakeStripeGateway) Name() string { return "stripe" }

func (g *fakeStripeGateway) CreateCheckoutSession(ctx context.Context, in services.StripeCheckoutInput) (*services.StripeCheckoutResult, error) {
	return &services.StripeCheckoutResult{SessionID: "cs_test_1", URL: "https://checkout.test/session"}, nil
}

func (g *fakeStripeGateway) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return stripe.Event{}, err
	}
	return event, nil
}

func (g *fakeStripeGateway) ResolveFees(ctx context.Context, paymentIntentID string) (*services.FeeBreakdown, error) {
	if g.fees == nil {
		return nil, errors.New("balance transaction not available")
	}
	return g.fees, nil
}

// fakePaypalGateway approves every create and serves a canned sale on
// execute.
type fakePaypalGateway struct {
	executed *services.PaypalExecutionResult
}

func (g *fakePaypalGateway) Name() string { return "paypal" }

func (g *fakePaypalGateway) CreatePayment(ctx context.Context, in services.PaypalCreateInput) (*services.PaypalCreateResult, error) {
	return &services.PaypalCreateResult{
		PaymentID:   "PAY-TEST-1",
		Token:       "EC-TEST-1",
		ApprovalURL: "https://paypal.test/approve?token=EC-TEST-1",
	}, nil
}

func (g *fakePaypalGateway) ExecutePayment(ctx context.Context, paymentID, payerID string) (*services.PaypalExecutionResult, error) {
	return g.executed, nil
}

type gatewayTestEnv struct {
	*flowTestEnv

	stripeGW *fakeStripeGateway
	paypalGW *fakePaypalGateway
	stripe   StripePaymentFlow
	paypal   PaypalPaymentFlow
}

func setupGatewayTest(t *testing.T) *gatewayTestEnv {
	t.Helper()

	env := setupFlowTest(t)
	filmRepo := repository.NewFilmRepository(env.db)
	auditRepo := repository.NewAuditLogRepository(env.db)
	settlement := NewSettlementEngine(env.customerRepo, filmRepo, env.walletRepo, env.txRepo, env.grantRepo)

	stripeGW := &fakeStripeGateway{}
	paypalGW := &fakePaypalGateway{}

	return &gatewayTestEnv{
		flowTestEnv: env,
		stripeGW:    stripeGW,
		paypalGW:    paypalGW,
		stripe: NewStripePaymentFlow(env.customerRepo, filmRepo, env.walletRepo, env.txRepo,
			env.grantRepo, auditRepo, stripeGW, settlement, nil, &config.ProductionConfig{}, env.db),
		paypal: NewPaypalPaymentFlow(env.customerRepo, filmRepo, env.txRepo, auditRepo,
			paypalGW, settlement, env.db),
	}
}

// checkoutCompletedPayload builds a checkout.session.completed event the
// way Stripe delivers it.
func checkoutCompletedPayload(t *testing.T, paymentIntentID string, amountCents int64, sessionMetadata map[string]string) []byte {
	t.Helper()
	event := map[string]any{
		"id":   "evt_test_1",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_1",
				"payment_intent": map[string]any{"id": paymentIntentID},
				"amount_total":   amountCents,
				"metadata":       sessionMetadata,
			},
		},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestStripeWebhookSettlesFilmPurchase(t *testing.T) {
	env := setupGatewayTest(t)
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
	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	env.stripeGW.fees = &services.FeeBreakdown{
		Gross: dec("10.00"), Fee: dec("1.00"), Net: dec("9.00"), Authoritative: true,
	}
	payload := checkoutCompletedPayload(t, "pi_test_1", 1000, map[string]string{
		"customer_id": uintStr(viewer.ID),
		"film_uuid":   film.UUID.String(),
		"intent":      "buy",
		"distro_code": *affiliate.DistroCode,
	})

	resp, err := env.stripe.HandleStripeWebhook(ctx, payload, "sig", metadata)
	require.NoError(t, err)
	assert.True(t, resp.Received)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, string(models.GrantTypeBuy), resp.GrantType)

	// Split of the net amount, never the gross
	assert.True(t, env.balances(t, filmmaker.ID).ReelBuxBalance.Equal(dec("6.30")))
	assert.True(t, env.balances(t, affiliate.ID).DistroBalance.Equal(dec("1.80")))
	assert.True(t, env.balances(t, platform.ID).ReelBuxBalance.Equal(dec("0.90")))

	exists, err := env.grantRepo.ActiveGrantExists(ctx, viewer.ID, film.ID, utils.UTCNow())
	require.NoError(t, err)
	assert.True(t, exists)

	// Payer leg plus the three-way split
	count, err := env.txRepo.Count(ctx, models.TransactionFilter{Status: utils.ToPtr(models.PaymentStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	// Only the payer leg carries the payment intent id; earning legs
	// are tied to it through the correlation id
	refLegs, err := env.txRepo.ByFilter(ctx, models.TransactionFilter{
		ExternalReference: utils.ToPtr("pi_test_1"),
	}, "id ASC", 10, 0)
	require.NoError(t, err)
	require.Len(t, refLegs, 1)
	assert.Equal(t, models.TransactionKindPurchase, refLegs[0].Kind)
	assert.Equal(t, models.BalanceKindNone, refLegs[0].BalanceKind)
}

func TestStripeWebhookRedeliveryIsNoOp(t *testing.T) {
	env := setupGatewayTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	_, err := env.fixtures.CreatePlatformAccount()
	require.NoError(t, err)
	filmmaker, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	env.stripeGW.fees = &services.FeeBreakdown{
		Gross: dec("10.00"), Fee: dec("1.00"), Net: dec("9.00"), Authoritative: true,
	}
	payload := checkoutCompletedPayload(t, "pi_test_2", 1000, map[string]string{
		"customer_id": uintStr(viewer.ID),
		"film_uuid":   film.UUID.String(),
		"intent":      "buy",
	})

	first, err := env.stripe.HandleStripeWebhook(ctx, payload, "sig", metadata)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := env.stripe.HandleStripeWebhook(ctx, payload, "sig", metadata)
	require.NoError(t, err)
	assert.True(t, second.Received)
	assert.True(t, second.Duplicate)

	// The ledger and balances did not move on redelivery
	count, err := env.txRepo.Count(ctx, models.TransactionFilter{Status: utils.ToPtr(models.PaymentStatusCompleted)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.True(t, env.balances(t, filmmaker.ID).ReelBuxBalance.Equal(dec("6.30")))
}

func TestStripeWebhookAddFundsCreditsNet(t *testing.T) {
	env := setupGatewayTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)

	env.stripeGW.fees = &services.FeeBreakdown{
		Gross: dec("20.00"), Fee: dec("0.88"), Net: dec("19.12"), Authoritative: true,
	}
	payload := checkoutCompletedPayload(t, "pi_fund_1", 2000, map[string]string{
		"customer_id": uintStr(viewer.ID),
		"intent":      "fund",
	})

	resp, err := env.stripe.HandleStripeWebhook(ctx, payload, "sig", metadata)
	require.NoError(t, err)
	assert.True(t, resp.Received)
	assert.Empty(t, resp.GrantType)

	// The processor fee never enters the spendable balance
	assert.True(t, env.balances(t, viewer.ID).ReelBuxBalance.Equal(dec("19.12")))

	legs, err := env.txRepo.ByFilter(ctx, models.TransactionFilter{
		Kind: utils.ToPtr(models.TransactionKindFund),
	}, "id ASC", 10, 0)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.True(t, legs[0].Amount.Equal(dec("19.12")))
	assert.Equal(t, models.BalanceKindReelBux, legs[0].BalanceKind)
	require.NotNil(t, legs[0].ExternalReference)
	assert.Equal(t, "pi_fund_1", *legs[0].ExternalReference)
}

func TestPaypalExecuteSettlesCheckout(t *testing.T) {
	env := setupGatewayTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	platform, err := env.fixtures.CreatePlatformAccount()
	require.NoError(t, err)
	filmmaker, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)
	film, err := env.fixtures.CreateTestFilm(filmmaker.ID, "10.00", "3.00")
	require.NoError(t, err)

	created, err := env.paypal.CreatePaypalCheckout(ctx, &dto.CreatePaypalCheckoutRequest{
		CustomerID: viewer.ID,
		FilmUUID:   film.UUID.String(),
		Intent:     "buy",
	}, metadata)
	require.NoError(t, err)
	require.Equal(t, "EC-TEST-1", created.Token)

	env.paypalGW.executed = &services.PaypalExecutionResult{
		SaleID: "SALE-TEST-1",
		State:  "approved",
		Gross:  dec("10.00"),
		Fee:    dec("1.00"),
		Net:    dec("9.00"),
	}

	resp, err := env.paypal.ExecutePaypalCheckout(ctx, &dto.ExecutePaypalCheckoutRequest{
		CustomerID: viewer.ID,
		Token:      created.Token,
		PayerID:    "PAYER-1",
	}, metadata)
	require.NoError(t, err)
	assert.Equal(t, string(models.GrantTypeBuy), resp.GrantType)
	assert.True(t, resp.Net.Equal(dec("9.00")))

	// The pending leg flipped in place: one row, completed, stamped
	// with the sale id
	payer, err := env.txRepo.ByGatewayToken(ctx, created.Token)
	require.NoError(t, err)
	require.NotNil(t, payer)
	assert.Equal(t, models.PaymentStatusCompleted, payer.Status)
	require.NotNil(t, payer.ExternalReference)
	assert.Equal(t, "SALE-TEST-1", *payer.ExternalReference)

	payerLegs, err := env.txRepo.Count(ctx, models.TransactionFilter{
		CorrelationID: &payer.CorrelationID,
		Kind:          utils.ToPtr(models.TransactionKindPurchase),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), payerLegs)

	// Sale id lives on the payer leg only
	refLegs, err := env.txRepo.Count(ctx, models.TransactionFilter{
		ExternalReference: utils.ToPtr("SALE-TEST-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), refLegs)

	assert.True(t, env.balances(t, filmmaker.ID).ReelBuxBalance.Equal(dec("6.30")))
	assert.True(t, env.balances(t, platform.ID).ReelBuxBalance.Equal(dec("2.70")))

	// A second execute on the same token is rejected
	_, err = env.paypal.ExecutePaypalCheckout(ctx, &dto.ExecutePaypalCheckoutRequest{
		CustomerID: viewer.ID,
		Token:      created.Token,
		PayerID:    "PAYER-1",
	}, metadata)
	require.Error(t, err)
	assert.True(t, IsPaymentAlreadyProcessed(err))
}

func TestPaypalAddFunds(t *testing.T) {
	env := setupGatewayTest(t)
	ctx := testingutil.CreateTestContext()
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	viewer, err := env.fixtures.CreateTestCustomer()
	require.NoError(t, err)

	created, err := env.paypal.CreatePaypalAddFunds(ctx, &dto.CreatePaypalAddFundsRequest{
		CustomerID: viewer.ID,
		Amount:     dec("25.00"),
	}, metadata)
	require.NoError(t, err)
	require.NotEmpty(t, created.ApprovalURL)

	env.paypalGW.executed = &services.PaypalExecutionResult{
		SaleID: "SALE-FUND-1",
		State:  "approved",
		Gross:  dec("25.00"),
		Fee:    dec("1.00"),
		Net:    dec("24.00"),
	}

	resp, err := env.paypal.ExecutePaypalCheckout(ctx, &dto.ExecutePaypalCheckoutRequest{
		CustomerID: viewer.ID,
		Token:      created.Token,
		PayerID:    "PAYER-1",
	}, metadata)
	require.NoError(t, err)
	assert.Empty(t, resp.GrantType)
	assert.True(t, resp.Net.Equal(dec("24.00")))

	// Net lands in the spendable balance
	assert.True(t, env.balances(t, viewer.ID).ReelBuxBalance.Equal(dec("24.00")))

	// Charge record completed with the sale id; a separate fund credit
	// leg shares the correlation id
	charge, err := env.txRepo.ByGatewayToken(ctx, created.Token)
	require.NoError(t, err)
	require.NotNil(t, charge)
	assert.Equal(t, models.PaymentStatusCompleted, charge.Status)
	require.NotNil(t, charge.ExternalReference)
	assert.Equal(t, "SALE-FUND-1", *charge.ExternalReference)

	legs, err := env.txRepo.ByFilter(ctx, models.TransactionFilter{
		CorrelationID: &charge.CorrelationID,
	}, "id ASC", 10, 0)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, models.BalanceKindNone, legs[0].BalanceKind)
	assert.Equal(t, models.BalanceKindReelBux, legs[1].BalanceKind)
	assert.True(t, legs[1].Amount.Equal(dec("24.00")))

	// Replaying the return URL is rejected
	_, err = env.paypal.ExecutePaypalCheckout(ctx, &dto.ExecutePaypalCheckoutRequest{
		CustomerID: viewer.ID,
		Token:      created.Token,
		PayerID:    "PAYER-1",
	}, metadata)
	require.Error(t, err)
	assert.True(t, IsPaymentAlreadyProcessed(err))
}

func TestRentGrantExpirySweep(t *testing.T) {
	env := setupGatewayTest(t)
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

	_, err = env.purchase.RentFilmWithReelBux(ctx, &dto.RentFilmRequest{
		CustomerID: viewer.ID,
		FilmUUID:   film.UUID.String(),
	}, metadata)
	require.NoError(t, err)

	// Rental window elapses
	require.NoError(t, env.db.Model(&models.FilmAccessGrant{}).
		Where("customer_id = ? AND film_id = ?", viewer.ID, film.ID).
		Update("expires_at", utils.UTCNow().Add(-time.Hour)).Error)

	// The lapsed grant no longer counts even before the sweep runs
	exists, err := env.grantRepo.ActiveGrantExists(ctx, viewer.ID, film.ID, utils.UTCNow())
	require.NoError(t, err)
	assert.False(t, exists)

	expired, err := env.grantRepo.ExpireDueGrants(ctx, utils.UTCNow())
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	var grant models.FilmAccessGrant
	require.NoError(t, env.db.Where("customer_id = ? AND film_id = ?", viewer.ID, film.ID).First(&grant).Error)
	assert.Equal(t, models.PaymentStatusExpired, grant.Status)

	// Sweeping again finds nothing
	expired, err = env.grantRepo.ExpireDueGrants(ctx, utils.UTCNow())
	require.NoError(t, err)
	assert.Equal(t, int64(0), expired)
}

func uintStr(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

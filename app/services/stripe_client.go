package services

import (
	"context"
	"fmt"

	"github.com/reelbux/reelbux/config"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeCheckoutInput describes a hosted checkout session. Metadata is
// echoed back on the webhook and carries everything settlement needs;
// no local pending row exists for Stripe payments.
type StripeCheckoutInput struct {
	Amount        decimal.Decimal
	Currency      string
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// StripeCheckoutResult carries the hosted checkout redirect.
type StripeCheckoutResult struct {
	SessionID string
	URL       string
}

// FeeBreakdown is the resolved money movement of a confirmed payment.
// Authoritative is false when the balance transaction was not yet
// available and the fee had to be estimated by the caller.
type FeeBreakdown struct {
	Gross         decimal.Decimal
	Fee           decimal.Decimal
	Net           decimal.Decimal
	Authoritative bool
}

// StripeGateway is the surface the payment flows depend on.
type StripeGateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, in StripeCheckoutInput) (*StripeCheckoutResult, error)
	VerifyWebhook(payload []byte, signature string) (stripe.Event, error)
	ResolveFees(ctx context.Context, paymentIntentID string) (*FeeBreakdown, error)
}

// StripeClient wraps the official client. The API key lives on the
// client instance; the package-level key is never set.
type StripeClient struct {
	client        *stripe.Client
	webhookSecret string
}

// NewStripeClient creates a new Stripe client
func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		client:        stripe.NewClient(cfg.SecretKey),
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *StripeClient) Name() string { return "stripe" }

// CreateCheckoutSession creates a hosted checkout session with the
// settlement metadata attached to both the session and its payment
// intent.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, in StripeCheckoutInput) (*StripeCheckoutResult, error) {
	params := &stripe.CheckoutSessionCreateParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{{
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripe.String(in.Currency),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(in.Description),
				},
				UnitAmount: stripe.Int64(dollarsToCents(in.Amount)),
			},
			Quantity: stripe.Int64(1),
		}},
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: in.Metadata,
		},
		Metadata: in.Metadata,
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}

	session, err := c.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	return &StripeCheckoutResult{
		SessionID: session.ID,
		URL:       session.URL,
	}, nil
}

// VerifyWebhook checks the event signature against the endpoint secret.
func (c *StripeClient) VerifyWebhook(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, c.webhookSecret)
}

// ResolveFees reads gross/fee/net from the payment's balance
// transaction. Returns nil when the charge or balance transaction is
// not available yet; the caller falls back to an estimate.
func (c *StripeClient) ResolveFees(ctx context.Context, paymentIntentID string) (*FeeBreakdown, error) {
	if paymentIntentID == "" {
		return nil, nil
	}

	pi, err := c.client.V1PaymentIntents.Retrieve(ctx, paymentIntentID, &stripe.PaymentIntentRetrieveParams{
		Params: stripe.Params{
			Expand: []*string{stripe.String("latest_charge")},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve payment intent %s: %w", paymentIntentID, err)
	}
	if pi.LatestCharge == nil || pi.LatestCharge.BalanceTransaction == nil {
		return nil, nil
	}

	bt, err := c.client.V1BalanceTransactions.Retrieve(ctx, pi.LatestCharge.BalanceTransaction.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve balance transaction: %w", err)
	}

	gross := centsToDollars(bt.Amount)
	fee := centsToDollars(bt.Fee)
	return &FeeBreakdown{
		Gross:         gross,
		Fee:           fee,
		Net:           centsToDollars(bt.Net),
		Authoritative: true,
	}, nil
}

func dollarsToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func centsToDollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reelbux/reelbux/app/dto"
	businessflow "github.com/reelbux/reelbux/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStripeFlow returns canned webhook results so the handler can be
// exercised without a database or gateway.
type stubStripeFlow struct {
	webhookResp *dto.StripeWebhookResponse
	webhookErr  error
}

func (s *stubStripeFlow) CreateStripeCheckoutSession(ctx context.Context, req *dto.CreateStripeCheckoutRequest, metadata *businessflow.ClientMetadata) (*dto.CreateStripeCheckoutResponse, error) {
	return nil, nil
}

func (s *stubStripeFlow) CreateAddFundsCheckoutSession(ctx context.Context, req *dto.CreateStripeAddFundsRequest, metadata *businessflow.ClientMetadata) (*dto.CreateStripeCheckoutResponse, error) {
	return nil, nil
}

func (s *stubStripeFlow) HandleStripeWebhook(ctx context.Context, payload []byte, signature string, metadata *businessflow.ClientMetadata) (*dto.StripeWebhookResponse, error) {
	return s.webhookResp, s.webhookErr
}

// counterValue reads a counter from the default registry by name and
// exact label set.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if len(m.GetLabel()) != len(labels) {
				continue
			}
			match := true
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					match = false
					break
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestWebhookCountsStripeSettlement(t *testing.T) {
	flow := &stubStripeFlow{
		webhookResp: &dto.StripeWebhookResponse{
			Received:  true,
			EventType: "checkout.session.completed",
			GrantType: "buy",
		},
	}
	h := NewStripePaymentHandler(flow)

	app := fiber.New()
	app.Post("/webhook", h.Webhook)

	labels := map[string]string{"source": "stripe", "grant_type": "buy"}
	before := counterValue(t, "payment_settlements_total", labels)

	resp, err := app.Test(httptest.NewRequest("POST", "/webhook", strings.NewReader("{}")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, before+1, counterValue(t, "payment_settlements_total", labels))
}

func TestWebhookDuplicateRecordsNoSettlement(t *testing.T) {
	flow := &stubStripeFlow{
		webhookResp: &dto.StripeWebhookResponse{
			Received:  true,
			Duplicate: true,
			EventType: "checkout.session.completed",
		},
	}
	h := NewStripePaymentHandler(flow)

	app := fiber.New()
	app.Post("/webhook", h.Webhook)

	labels := map[string]string{"source": "stripe", "grant_type": "buy"}
	before := counterValue(t, "payment_settlements_total", labels)

	resp, err := app.Test(httptest.NewRequest("POST", "/webhook", strings.NewReader("{}")))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, before, counterValue(t, "payment_settlements_total", labels))
	dupes := counterValue(t, "webhook_deliveries_total", map[string]string{"gateway": "stripe", "outcome": "duplicate"})
	assert.GreaterOrEqual(t, dupes, float64(1))
}

func TestClientMetadataCarriesRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/echo", func(c fiber.Ctx) error {
		return c.SendString(clientMetadata(c).RequestID)
	})

	req := httptest.NewRequest("GET", "/echo", nil)
	req.Header.Set("X-Request-ID", "req-test-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// The id assigned by the requestid middleware reaches the audit trail
	assert.Equal(t, "req-test-123", string(body))
}

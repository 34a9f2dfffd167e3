// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/app/middleware"
	businessflow "github.com/reelbux/reelbux/business_flow"
)

// StripePaymentHandlerInterface defines the contract for Stripe payment handlers
type StripePaymentHandlerInterface interface {
	CreateCheckout(c fiber.Ctx) error
	CreateAddFundsCheckout(c fiber.Ctx) error
	Webhook(c fiber.Ctx) error
}

// StripePaymentHandler handles Stripe checkout creation and webhook delivery
type StripePaymentHandler struct {
	stripeFlow businessflow.StripePaymentFlow
	validator  *validator.Validate
}

// NewStripePaymentHandler creates a new Stripe payment handler
func NewStripePaymentHandler(stripeFlow businessflow.StripePaymentFlow) *StripePaymentHandler {
	return &StripePaymentHandler{
		stripeFlow: stripeFlow,
		validator:  validator.New(),
	}
}

func (h *StripePaymentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *StripePaymentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCheckout creates a hosted Stripe checkout for a film
// @Summary Create Stripe Checkout
// @Description Create a hosted Stripe checkout session for buying or renting a film
// @Tags Stripe
// @Accept json
// @Produce json
// @Param request body dto.CreateStripeCheckoutRequest true "Checkout data"
// @Success 200 {object} dto.APIResponse{data=dto.CreateStripeCheckoutResponse} "Checkout created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 409 {object} dto.APIResponse "Film already owned"
// @Failure 502 {object} dto.APIResponse "Gateway error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stripe/checkout [post]
func (h *StripePaymentHandler) CreateCheckout(c fiber.Ctx) error {
	var req dto.CreateStripeCheckoutRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)

	result, err := h.stripeFlow.CreateStripeCheckoutSession(h.createRequestContext(c, "/api/v1/stripe/checkout"), &req, metadata)
	if err != nil {
		return h.mapCheckoutError(c, err, "Stripe checkout creation failed", "STRIPE_CHECKOUT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Checkout created successfully", result)
}

// CreateAddFundsCheckout creates a hosted Stripe checkout for a wallet top-up
// @Summary Create Add-Funds Checkout
// @Description Create a hosted Stripe checkout session that tops up the ReelBux wallet
// @Tags Stripe
// @Accept json
// @Produce json
// @Param request body dto.CreateStripeAddFundsRequest true "Top-up data"
// @Success 200 {object} dto.APIResponse{data=dto.CreateStripeCheckoutResponse} "Checkout created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid amount"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 502 {object} dto.APIResponse "Gateway error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stripe/add-funds [post]
func (h *StripePaymentHandler) CreateAddFundsCheckout(c fiber.Ctx) error {
	var req dto.CreateStripeAddFundsRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)

	result, err := h.stripeFlow.CreateAddFundsCheckoutSession(h.createRequestContext(c, "/api/v1/stripe/add-funds"), &req, metadata)
	if err != nil {
		return h.mapCheckoutError(c, err, "Stripe add-funds checkout creation failed", "STRIPE_ADD_FUNDS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Checkout created successfully", result)
}

// Webhook receives Stripe event deliveries. The endpoint is
// unauthenticated; the signature header is the only trust anchor.
// @Summary Stripe Webhook
// @Description Receive and process Stripe webhook events
// @Tags Stripe
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe webhook signature"
// @Success 200 {object} dto.StripeWebhookResponse "Event processed"
// @Failure 400 {object} dto.APIResponse "Invalid signature"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/stripe/webhook [post]
func (h *StripePaymentHandler) Webhook(c fiber.Ctx) error {
	payload := c.Body()
	signature := c.Get("Stripe-Signature")

	metadata := clientMetadata(c)

	result, err := h.stripeFlow.HandleStripeWebhook(h.createRequestContext(c, "/api/v1/stripe/webhook"), payload, signature, metadata)
	if err != nil {
		if businessflow.IsInvalidWebhookSignature(err) {
			middleware.RecordWebhookDelivery("stripe", "rejected")
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook signature", "INVALID_SIGNATURE", nil)
		}

		// Non-2xx makes Stripe retry the delivery later
		middleware.RecordWebhookDelivery("stripe", "failed")
		log.Println("Stripe webhook processing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook processing failed", "STRIPE_WEBHOOK_FAILED", nil)
	}

	if result.Duplicate {
		middleware.RecordWebhookDelivery("stripe", "duplicate")
	} else {
		middleware.RecordWebhookDelivery("stripe", "processed")
		if result.GrantType != "" {
			middleware.RecordSettlement("stripe", result.GrantType)
		}
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// mapCheckoutError translates Stripe checkout errors to HTTP responses
func (h *StripePaymentHandler) mapCheckoutError(c fiber.Ctx, err error, genericMessage, genericCode string) error {
	if businessflow.IsCustomerNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
	}
	if businessflow.IsAccountInactive(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
	}
	if businessflow.IsFilmNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Film not found", "FILM_NOT_FOUND", nil)
	}
	if businessflow.IsFilmNotPublished(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Film is not available for sale", "FILM_NOT_PUBLISHED", nil)
	}
	if businessflow.IsFilmAlreadyOwned(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Film is already in your library", "FILM_ALREADY_OWNED", nil)
	}
	if businessflow.IsInvalidAmount(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Amount must be positive", "INVALID_AMOUNT", nil)
	}
	if businessflow.IsGatewayFailure(err) {
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Payment gateway error", "GATEWAY_ERROR", nil)
	}

	log.Println(genericMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, genericMessage, genericCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *StripePaymentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}

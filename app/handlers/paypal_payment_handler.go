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

// PaypalPaymentHandlerInterface defines the contract for PayPal payment handlers
type PaypalPaymentHandlerInterface interface {
	CreateCheckout(c fiber.Ctx) error
	CreateAddFunds(c fiber.Ctx) error
	ExecuteCheckout(c fiber.Ctx) error
	CancelCheckout(c fiber.Ctx) error
}

// PaypalPaymentHandler handles the PayPal redirect checkout endpoints
type PaypalPaymentHandler struct {
	paypalFlow businessflow.PaypalPaymentFlow
	validator  *validator.Validate
}

// NewPaypalPaymentHandler creates a new PayPal payment handler
func NewPaypalPaymentHandler(paypalFlow businessflow.PaypalPaymentFlow) *PaypalPaymentHandler {
	return &PaypalPaymentHandler{
		paypalFlow: paypalFlow,
		validator:  validator.New(),
	}
}

func (h *PaypalPaymentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PaypalPaymentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCheckout starts the PayPal redirect flow for a film
// @Summary Create PayPal Checkout
// @Description Create a PayPal payment and return the approval redirect URL
// @Tags PayPal
// @Accept json
// @Produce json
// @Param request body dto.CreatePaypalCheckoutRequest true "Checkout data"
// @Success 200 {object} dto.APIResponse{data=dto.CreatePaypalCheckoutResponse} "Checkout created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 409 {object} dto.APIResponse "Film already owned"
// @Failure 502 {object} dto.APIResponse "Gateway error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/paypal/checkout [post]
func (h *PaypalPaymentHandler) CreateCheckout(c fiber.Ctx) error {
	var req dto.CreatePaypalCheckoutRequest
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

	result, err := h.paypalFlow.CreatePaypalCheckout(h.createRequestContext(c, "/api/v1/paypal/checkout"), &req, metadata)
	if err != nil {
		return h.mapCheckoutError(c, err, "PayPal checkout creation failed", "PAYPAL_CHECKOUT_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Checkout created successfully", result)
}

// CreateAddFunds starts the PayPal redirect flow for a wallet top-up
// @Summary Create PayPal Add-Funds Checkout
// @Description Create a PayPal payment that tops up the wallet balance
// @Tags PayPal
// @Accept json
// @Produce json
// @Param request body dto.CreatePaypalAddFundsRequest true "Top-up data"
// @Success 200 {object} dto.APIResponse{data=dto.CreatePaypalCheckoutResponse} "Checkout created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid amount"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 502 {object} dto.APIResponse "Gateway error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/paypal/add-funds [post]
func (h *PaypalPaymentHandler) CreateAddFunds(c fiber.Ctx) error {
	var req dto.CreatePaypalAddFundsRequest
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

	result, err := h.paypalFlow.CreatePaypalAddFunds(h.createRequestContext(c, "/api/v1/paypal/add-funds"), &req, metadata)
	if err != nil {
		return h.mapCheckoutError(c, err, "PayPal add-funds checkout creation failed", "PAYPAL_ADD_FUNDS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Checkout created successfully", result)
}

// ExecuteCheckout completes an approved PayPal checkout
// @Summary Execute PayPal Checkout
// @Description Execute an approved PayPal payment after the payer returns from the gateway
// @Tags PayPal
// @Accept json
// @Produce json
// @Param request body dto.ExecutePaypalCheckoutRequest true "Execution data"
// @Success 200 {object} dto.APIResponse{data=dto.ExecutePaypalCheckoutResponse} "Checkout executed successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or checkout not approved"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 404 {object} dto.APIResponse "Checkout not found"
// @Failure 409 {object} dto.APIResponse "Payment already processed"
// @Failure 502 {object} dto.APIResponse "Gateway error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/paypal/execute [post]
func (h *PaypalPaymentHandler) ExecuteCheckout(c fiber.Ctx) error {
	var req dto.ExecutePaypalCheckoutRequest
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

	result, err := h.paypalFlow.ExecutePaypalCheckout(h.createRequestContext(c, "/api/v1/paypal/execute"), &req, metadata)
	if err != nil {
		return h.mapCheckoutError(c, err, "PayPal checkout execution failed", "PAYPAL_EXECUTE_FAILED")
	}

	// Top-up executions carry no grant
	if result.GrantType != "" {
		middleware.RecordSettlement("paypal", result.GrantType)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Checkout executed successfully", result)
}

// CancelCheckout abandons a pending PayPal checkout
// @Summary Cancel PayPal Checkout
// @Description Cancel a pending PayPal checkout after the payer bailed out
// @Tags PayPal
// @Accept json
// @Produce json
// @Param request body dto.CancelPaypalCheckoutRequest true "Cancellation data"
// @Success 200 {object} dto.APIResponse "Checkout cancelled successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 404 {object} dto.APIResponse "Checkout not found"
// @Failure 409 {object} dto.APIResponse "Payment already processed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/paypal/cancel [post]
func (h *PaypalPaymentHandler) CancelCheckout(c fiber.Ctx) error {
	var req dto.CancelPaypalCheckoutRequest
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

	if err := h.paypalFlow.CancelPaypalCheckout(h.createRequestContext(c, "/api/v1/paypal/cancel"), &req, metadata); err != nil {
		return h.mapCheckoutError(c, err, "PayPal checkout cancellation failed", "PAYPAL_CANCEL_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Checkout cancelled successfully", nil)
}

// mapCheckoutError translates PayPal flow errors to HTTP responses
func (h *PaypalPaymentHandler) mapCheckoutError(c fiber.Ctx, err error, genericMessage, genericCode string) error {
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
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Film has no valid price for this operation", "INVALID_AMOUNT", nil)
	}
	if businessflow.IsCheckoutNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Checkout not found", "CHECKOUT_NOT_FOUND", nil)
	}
	if businessflow.IsCheckoutNotApproved(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Checkout was not approved by the payer", "CHECKOUT_NOT_APPROVED", nil)
	}
	if businessflow.IsPaymentAlreadyProcessed(err) {
		return h.ErrorResponse(c, fiber.StatusConflict, "Payment already processed", "PAYMENT_ALREADY_PROCESSED", nil)
	}
	if businessflow.IsGatewayFailure(err) {
		return h.ErrorResponse(c, fiber.StatusBadGateway, "Payment gateway error", "GATEWAY_ERROR", nil)
	}

	log.Println(genericMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, genericMessage, genericCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *PaypalPaymentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}

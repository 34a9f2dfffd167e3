// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/reelbux/reelbux/app/dto"
	"github.com/reelbux/reelbux/app/middleware"
	businessflow "github.com/reelbux/reelbux/business_flow"
)

// FilmPaymentHandlerInterface defines the contract for wallet film payment handlers
type FilmPaymentHandlerInterface interface {
	PurchaseFilm(c fiber.Ctx) error
	RentFilm(c fiber.Ctx) error
	ListAccessGrants(c fiber.Ctx) error
}

// FilmPaymentHandler handles film purchases and rentals paid from the wallet
type FilmPaymentHandler struct {
	purchaseFlow businessflow.PurchaseFlow
	validator    *validator.Validate
}

// NewFilmPaymentHandler creates a new film payment handler
func NewFilmPaymentHandler(purchaseFlow businessflow.PurchaseFlow) *FilmPaymentHandler {
	return &FilmPaymentHandler{
		purchaseFlow: purchaseFlow,
		validator:    validator.New(),
	}
}

func (h *FilmPaymentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *FilmPaymentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// PurchaseFilm handles a wallet-funded film purchase
// @Summary Purchase Film
// @Description Buy perpetual access to a film using the ReelBux wallet balance
// @Tags Films
// @Accept json
// @Produce json
// @Param request body dto.PurchaseFilmRequest true "Purchase data"
// @Success 200 {object} dto.APIResponse{data=dto.PurchaseFilmResponse} "Film purchased successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 402 {object} dto.APIResponse "Insufficient wallet balance"
// @Failure 409 {object} dto.APIResponse "Film already owned"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/films/purchase [post]
func (h *FilmPaymentHandler) PurchaseFilm(c fiber.Ctx) error {
	var req dto.PurchaseFilmRequest
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

	result, err := h.purchaseFlow.PurchaseFilmWithReelBux(h.createRequestContext(c, "/api/v1/films/purchase"), &req, metadata)
	if err != nil {
		return h.mapPaymentError(c, err, "Film purchase failed", "FILM_PURCHASE_FAILED")
	}

	middleware.RecordSettlement("reelbux", result.GrantType)
	return h.SuccessResponse(c, fiber.StatusOK, "Film purchased successfully", result)
}

// RentFilm handles a wallet-funded film rental
// @Summary Rent Film
// @Description Rent time-boxed access to a film using the ReelBux wallet balance
// @Tags Films
// @Accept json
// @Produce json
// @Param request body dto.RentFilmRequest true "Rental data"
// @Success 200 {object} dto.APIResponse{data=dto.PurchaseFilmResponse} "Film rented successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 402 {object} dto.APIResponse "Insufficient wallet balance"
// @Failure 409 {object} dto.APIResponse "Film already owned"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/films/rent [post]
func (h *FilmPaymentHandler) RentFilm(c fiber.Ctx) error {
	var req dto.RentFilmRequest
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

	result, err := h.purchaseFlow.RentFilmWithReelBux(h.createRequestContext(c, "/api/v1/films/rent"), &req, metadata)
	if err != nil {
		return h.mapPaymentError(c, err, "Film rental failed", "FILM_RENTAL_FAILED")
	}

	middleware.RecordSettlement("reelbux", result.GrantType)
	return h.SuccessResponse(c, fiber.StatusOK, "Film rented successfully", result)
}

// ListAccessGrants returns the authenticated customer's film library
// @Summary List Access Grants
// @Description Retrieve paginated viewing rights for the authenticated customer
// @Tags Films
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param page_size query int false "Number of items per page (default: 20, max: 100)" minimum(1) maximum(100)
// @Success 200 {object} dto.APIResponse{data=dto.ListAccessGrantsResponse} "Access grants retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/films/library [get]
func (h *FilmPaymentHandler) ListAccessGrants(c fiber.Ctx) error {
	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	page := uint(1)
	if pageStr := c.Query("page"); pageStr != "" {
		if parsed, err := strconv.ParseUint(pageStr, 10, 32); err == nil {
			page = uint(parsed)
		}
	}

	pageSize := uint(20)
	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.ParseUint(pageSizeStr, 10, 32); err == nil {
			pageSize = uint(parsed)
		}
	}

	req := &dto.ListAccessGrantsRequest{
		CustomerID: customerID,
		Page:       page,
		PageSize:   pageSize,
	}

	metadata := clientMetadata(c)

	result, err := h.purchaseFlow.ListAccessGrants(h.createRequestContext(c, "/api/v1/films/library"), req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
		}

		log.Println("Access grants retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve access grants", "ACCESS_GRANTS_RETRIEVAL_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Access grants retrieved successfully", result)
}

// mapPaymentError translates wallet payment errors to HTTP responses
func (h *FilmPaymentHandler) mapPaymentError(c fiber.Ctx, err error, genericMessage, genericCode string) error {
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
	if businessflow.IsInsufficientFunds(err) {
		return h.ErrorResponse(c, fiber.StatusPaymentRequired, "Insufficient wallet balance", "INSUFFICIENT_FUNDS", nil)
	}
	if businessflow.IsInvalidAmount(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Film has no valid price for this operation", "INVALID_AMOUNT", nil)
	}

	log.Println(genericMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, genericMessage, genericCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *FilmPaymentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}

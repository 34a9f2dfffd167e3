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
	businessflow "github.com/reelbux/reelbux/business_flow"
)

// WalletHandlerInterface defines the contract for wallet handlers
type WalletHandlerInterface interface {
	GetBalance(c fiber.Ctx) error
	GetTransactionHistory(c fiber.Ctx) error
	TransferDistro(c fiber.Ctx) error
}

// WalletHandler handles wallet-related HTTP requests
type WalletHandler struct {
	walletFlow businessflow.WalletFlow
	validator  *validator.Validate
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletFlow businessflow.WalletFlow) *WalletHandler {
	return &WalletHandler{
		walletFlow: walletFlow,
		validator:  validator.New(),
	}
}

func (h *WalletHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WalletHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetBalance returns both wallet balances for the authenticated customer
// @Summary Get Wallet Balance
// @Description Retrieve the ReelBux and distro balances for the authenticated customer
// @Tags Wallet
// @Accept json
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.GetWalletBalanceResponse} "Balance retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/wallet/balance [get]
func (h *WalletHandler) GetBalance(c fiber.Ctx) error {
	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.GetWalletBalanceRequest{CustomerID: customerID}
	metadata := clientMetadata(c)

	result, err := h.walletFlow.GetWalletBalance(h.createRequestContext(c, "/api/v1/wallet/balance"), req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Wallet balance retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve wallet balance", "WALLET_BALANCE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Wallet balance retrieved successfully", result)
}

// GetTransactionHistory returns the ledger history for the authenticated customer
// @Summary Get Transaction History
// @Description Retrieve paginated ledger history for the authenticated customer
// @Tags Wallet
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param page_size query int false "Number of items per page (default: 20, max: 100)" minimum(1) maximum(100)
// @Param start_date query string false "Start date filter (ISO 8601 format)"
// @Param end_date query string false "End date filter (ISO 8601 format)"
// @Param source query string false "Transaction source filter"
// @Param kind query string false "Transaction kind filter"
// @Param status query string false "Transaction status filter"
// @Success 200 {object} dto.APIResponse{data=dto.TransactionHistoryResponse} "Transaction history retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/wallet/transactions [get]
func (h *WalletHandler) GetTransactionHistory(c fiber.Ctx) error {
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

	var startDate, endDate *time.Time
	if startDateStr := c.Query("start_date"); startDateStr != "" {
		if parsed, err := time.Parse(time.RFC3339, startDateStr); err == nil {
			startDate = &parsed
		}
	}
	if endDateStr := c.Query("end_date"); endDateStr != "" {
		if parsed, err := time.Parse(time.RFC3339, endDateStr); err == nil {
			endDate = &parsed
		}
	}

	var source, kind, status *string
	if sourceStr := c.Query("source"); sourceStr != "" {
		source = &sourceStr
	}
	if kindStr := c.Query("kind"); kindStr != "" {
		kind = &kindStr
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status = &statusStr
	}

	req := &dto.GetTransactionHistoryRequest{
		CustomerID: customerID,
		Page:       page,
		PageSize:   pageSize,
		StartDate:  startDate,
		EndDate:    endDate,
		Source:     source,
		Kind:       kind,
		Status:     status,
	}

	metadata := clientMetadata(c)

	result, err := h.walletFlow.GetTransactionHistory(h.createRequestContext(c, "/api/v1/wallet/transactions"), req, metadata)
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
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date must not be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Transaction history retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve transaction history", "TRANSACTION_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transaction history retrieved successfully", result)
}

// TransferDistro moves affiliate earnings into the spendable balance
// @Summary Transfer Distro Balance
// @Description Move funds from the distro balance to the spendable ReelBux balance
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body dto.TransferDistroRequest true "Transfer data"
// @Success 200 {object} dto.APIResponse{data=dto.TransferDistroResponse} "Transfer completed successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid amount"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 402 {object} dto.APIResponse "Insufficient distro balance"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/wallet/transfer-distro [post]
func (h *WalletHandler) TransferDistro(c fiber.Ctx) error {
	var req dto.TransferDistroRequest
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

	result, err := h.walletFlow.TransferDistroToReelBux(h.createRequestContext(c, "/api/v1/wallet/transfer-distro"), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}
		if businessflow.IsInvalidAmount(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Transfer amount must be positive", "INVALID_AMOUNT", nil)
		}
		if businessflow.IsInsufficientFunds(err) {
			return h.ErrorResponse(c, fiber.StatusPaymentRequired, "Insufficient distro balance", "INSUFFICIENT_FUNDS", nil)
		}

		log.Println("Distro transfer failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Distro transfer failed", "DISTRO_TRANSFER_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transfer completed successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *WalletHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}

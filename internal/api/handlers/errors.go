package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	derrors "github.com/joltify-bridge/bridge_service/internal/domain/errors"
)

// Error codes as constants for consistent error responses across handlers
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeValidationError     = "VALIDATION_ERROR"
	ErrCodeInvalidID           = "INVALID_ID"
	ErrCodeInvalidChain        = "INVALID_CHAIN"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeTransferNotFound    = "TRANSFER_NOT_FOUND"
	ErrCodeNotRecoverable      = "NOT_RECOVERABLE"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeSigningRejected     = "SIGNING_REJECTED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Common error messages
const (
	MsgInvalidRequest   = "Invalid request payload"
	MsgInternalError    = "Internal server error"
	MsgTransferNotFound = "Transfer not found"
)

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: det,
	})
}

// SendNotFound sends a 404 Not Found error
func SendNotFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, entities.ErrorResponse{
		Code:    ErrCodeInternalError,
		Message: message,
	})
}

// SendDomainError maps a domain error to its HTTP representation.
func SendDomainError(c *gin.Context, err error) {
	var (
		status = http.StatusInternalServerError
		code   = ErrCodeInternalError
	)

	switch derrors.KindOf(err) {
	case derrors.KindValidation:
		status, code = http.StatusBadRequest, ErrCodeValidationError
	case derrors.KindInsufficientBalance:
		status, code = http.StatusUnprocessableEntity, ErrCodeInsufficientFunds
	case derrors.KindSigningRejected:
		status, code = http.StatusBadRequest, ErrCodeSigningRejected
	case derrors.KindSubmission, derrors.KindSimulation, derrors.KindPollTimeout:
		status, code = http.StatusBadGateway, ErrCodeUpstreamUnavailable
	}

	resp := entities.ErrorResponse{
		Code:    code,
		Message: err.Error(),
	}
	var te *derrors.TransferError
	if errors.As(err, &te) && te.Details != nil {
		resp.Details = te.Details
	}
	c.JSON(status, resp)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	"github.com/joltify-bridge/bridge_service/internal/domain/services/routes"
	"github.com/joltify-bridge/bridge_service/pkg/logger"
	"github.com/joltify-bridge/bridge_service/pkg/metrics"
)

// TransferOrchestrator is the slice of the orchestrator the API needs.
type TransferOrchestrator interface {
	Start(ctx context.Context, req entities.TransferRequest) (entities.TransferState, error)
	Get(id uuid.UUID) (entities.TransferState, bool)
	History(id uuid.UUID) ([]entities.StateChange, bool)
	List() []entities.TransferState
	Cancel(id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) (entities.TransferState, error)
}

// RouteQuoter exposes per-destination fees and ETAs.
type RouteQuoter interface {
	FeeAndETA(chainName string) routes.FeeQuote
}

// TransferHandlers serves the transfer lifecycle endpoints.
type TransferHandlers struct {
	orchestrator TransferOrchestrator
	quotes       RouteQuoter
	logger       *logger.Logger
}

// NewTransferHandlers creates transfer handlers.
func NewTransferHandlers(orchestrator TransferOrchestrator, quotes RouteQuoter, logger *logger.Logger) *TransferHandlers {
	return &TransferHandlers{
		orchestrator: orchestrator,
		quotes:       quotes,
		logger:       logger,
	}
}

// CreateTransferRequest is the POST /transfers payload.
type CreateTransferRequest struct {
	SourceDomain string `json:"source_domain" binding:"required"`
	TargetDomain string `json:"target_domain" binding:"required"`
	Recipient    string `json:"recipient" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	SignerHandle string `json:"signer_handle"`
}

// Create accepts a transfer and starts it asynchronously.
func (h *TransferHandlers) Create(c *gin.Context) {
	var body CreateTransferRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidAmount, "Amount is not a valid decimal")
		return
	}

	source, ok := entities.DomainByName[body.SourceDomain]
	if !ok {
		SendBadRequest(c, ErrCodeInvalidChain, "Unknown source domain", map[string]interface{}{
			"source_domain": body.SourceDomain,
		})
		return
	}
	target, ok := entities.DomainByName[body.TargetDomain]
	if !ok {
		SendBadRequest(c, ErrCodeInvalidChain, "Unknown target domain", map[string]interface{}{
			"target_domain": body.TargetDomain,
		})
		return
	}

	state, err := h.orchestrator.Start(c.Request.Context(), entities.TransferRequest{
		SourceDomain: source,
		TargetDomain: target,
		Recipient:    body.Recipient,
		Amount:       amount,
		SignerHandle: body.SignerHandle,
	})
	if err != nil {
		SendDomainError(c, err)
		return
	}

	metrics.TransfersStarted.WithLabelValues(source.Name, target.Name).Inc()
	h.logger.Info("Transfer accepted",
		"transfer_id", state.Request.ID.String(),
		"source", source.Name,
		"target", target.Name,
	)
	c.JSON(http.StatusAccepted, state)
}

// Get returns the current state of one transfer.
func (h *TransferHandlers) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Transfer ID must be a UUID")
		return
	}
	state, ok := h.orchestrator.Get(id)
	if !ok {
		SendNotFound(c, ErrCodeTransferNotFound, MsgTransferNotFound)
		return
	}
	c.JSON(http.StatusOK, state)
}

// History returns the transition log of one transfer.
func (h *TransferHandlers) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Transfer ID must be a UUID")
		return
	}
	history, ok := h.orchestrator.History(id)
	if !ok {
		SendNotFound(c, ErrCodeTransferNotFound, MsgTransferNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer_id": id, "history": history})
}

// List returns all known transfers.
func (h *TransferHandlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transfers": h.orchestrator.List()})
}

// Cancel aborts an in-flight transfer.
func (h *TransferHandlers) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Transfer ID must be a UUID")
		return
	}
	if err := h.orchestrator.Cancel(id); err != nil {
		SendDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer_id": id, "cancelled": true})
}

// Relay re-runs the mint leg of a recoverably failed transfer.
func (h *TransferHandlers) Relay(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		SendBadRequest(c, ErrCodeInvalidID, "Transfer ID must be a UUID")
		return
	}
	state, err := h.orchestrator.Resume(c.Request.Context(), id)
	if err != nil {
		SendDomainError(c, err)
		return
	}
	h.logger.Info("Transfer relay restarted",
		"original_id", id.String(),
		"transfer_id", state.Request.ID.String(),
	)
	c.JSON(http.StatusAccepted, state)
}

// Quote returns the relay fee and ETA for a destination chain.
func (h *TransferHandlers) Quote(c *gin.Context) {
	chain := c.Param("chain")
	if _, ok := entities.DomainByName[chain]; !ok {
		SendBadRequest(c, ErrCodeInvalidChain, "Unknown chain", map[string]interface{}{
			"chain": chain,
		})
		return
	}
	quote := h.quotes.FeeAndETA(chain)
	c.JSON(http.StatusOK, gin.H{
		"chain": chain,
		"fee":   quote.Fee.String(),
		"eta":   quote.ETA,
		"known": quote.Known,
	})
}

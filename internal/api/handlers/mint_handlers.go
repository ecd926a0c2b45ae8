package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joltify-bridge/bridge_service/internal/domain/entities"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/iris"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/relayapi"
	"github.com/joltify-bridge/bridge_service/pkg/logger"
)

// AttestationFetcher fetches attested messages for a burn transaction.
type AttestationFetcher interface {
	GetMessages(ctx context.Context, sourceDomainID uint32, txHash string) (*iris.MessagesResponse, error)
}

// EVMMinter executes the mint leg on an EVM destination.
type EVMMinter interface {
	MintOnEVM(ctx context.Context, messages []iris.Message, txHash string) (*relayapi.MintResult, error)
}

// MintHandlers serves the manual mint endpoint used when the route minter
// has not picked up a hub burn.
type MintHandlers struct {
	attestations AttestationFetcher
	minter       EVMMinter
	logger       *logger.Logger
}

// NewMintHandlers creates mint handlers.
func NewMintHandlers(attestations AttestationFetcher, minter EVMMinter, logger *logger.Logger) *MintHandlers {
	return &MintHandlers{attestations: attestations, minter: minter, logger: logger}
}

// MintRequest is the POST /mint payload.
type MintRequest struct {
	SourceDomain string `json:"source_domain" binding:"required"`
	TxHash       string `json:"tx_hash" binding:"required"`
}

// Mint fetches the attested messages for a burn and pushes the mint to the
// destination chain.
func (h *MintHandlers) Mint(c *gin.Context) {
	var body MintRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		SendBadRequest(c, ErrCodeInvalidRequest, MsgInvalidRequest)
		return
	}

	domain, ok := entities.DomainByName[body.SourceDomain]
	if !ok || !domain.HasCircleID {
		SendBadRequest(c, ErrCodeInvalidChain, "Unknown source domain", map[string]interface{}{
			"source_domain": body.SourceDomain,
		})
		return
	}

	resp, err := h.attestations.GetMessages(c.Request.Context(), domain.CircleID, body.TxHash)
	if err != nil {
		if errors.Is(err, iris.ErrNoMessages) {
			SendNotFound(c, ErrCodeNotFound, "No messages found for transaction")
			return
		}
		SendInternalError(c, "Attestation lookup failed")
		return
	}

	for _, msg := range resp.Messages {
		if !msg.Complete() {
			c.JSON(http.StatusConflict, entities.ErrorResponse{
				Code:    "ATTESTATION_PENDING",
				Message: "Attestation is not complete yet, retry later",
			})
			return
		}
	}

	result, err := h.minter.MintOnEVM(c.Request.Context(), resp.Messages, body.TxHash)
	if err != nil {
		SendInternalError(c, "Mint submission failed")
		return
	}
	if !result.Succeeded() {
		c.JSON(http.StatusBadGateway, entities.ErrorResponse{
			Code:    ErrCodeUpstreamUnavailable,
			Message: result.Error,
		})
		return
	}

	h.logger.Info("Manual mint submitted",
		"source_domain", body.SourceDomain,
		"tx_hash", body.TxHash,
	)
	c.JSON(http.StatusOK, gin.H{"status": "minted", "tx_hash": body.TxHash})
}

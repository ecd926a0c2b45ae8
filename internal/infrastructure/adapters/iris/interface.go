package iris

import "context"

// AttestationClient defines the interface for attestation API operations.
type AttestationClient interface {
	// GetMessages fetches the attested messages for a burn transaction.
	GetMessages(ctx context.Context, sourceDomainID uint32, txHash string) (*MessagesResponse, error)
}

// Ensure Client implements AttestationClient.
var _ AttestationClient = (*Client)(nil)

package iris

// MessagesResponse represents the response from the attestation API.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// Message represents a single bridge message with its attestation. The
// attestation field holds the literal string "PENDING" until the service
// has produced a signature, then the hex-encoded attestation bytes.
type Message struct {
	Attestation       string `json:"attestation"`
	Message           string `json:"message"`
	EventNonce        string `json:"eventNonce,omitempty"`
	SourceDomain      uint32 `json:"sourceDomain,omitempty"`
	DestinationDomain uint32 `json:"destinationDomain,omitempty"`
}

// Complete reports whether the attestation has been produced.
func (m Message) Complete() bool {
	return m.Attestation != "" && m.Attestation != AttestationStatusPending
}

package iris

const (
	// API hosts
	MainnetURL = "https://iris-api.circle.com"
	SandboxURL = "https://iris-api-sandbox.circle.com"

	// Rate limiting
	MaxRequestsPerSecond = 35

	// Attestation statuses as reported by the API. A missing message list
	// or a 404 is equivalent to pending: the indexer may lag the chain.
	AttestationStatusPending = "PENDING"
)

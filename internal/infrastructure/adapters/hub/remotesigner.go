package hub

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteSigner delegates hub-chain signing to an external signer service.
// The service holds the key; this process only ever sees sign-doc bytes and
// signatures.
type RemoteSigner struct {
	address    string
	signURL    string
	httpClient *http.Client
}

// NewRemoteSigner creates a signer capability backed by the given endpoint.
func NewRemoteSigner(address, signURL string, timeout time.Duration) *RemoteSigner {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &RemoteSigner{
		address:    address,
		signURL:    signURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *RemoteSigner) Address() string { return s.address }

func (s *RemoteSigner) Sign(ctx context.Context, doc []byte) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"signer":   s.address,
		"sign_doc": base64.StdEncoding.EncodeToString(doc),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.signURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read sign response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("signer service status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal sign response: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return sig, nil
}

var _ Signer = (*RemoteSigner)(nil)

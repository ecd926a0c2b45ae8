// Package signing resolves opaque signer handles into signing capabilities.
package signing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/evm"
	"github.com/joltify-bridge/bridge_service/internal/infrastructure/adapters/hub"
	"github.com/joltify-bridge/bridge_service/pkg/addrcodec"
)

// Resolver maps handles to signers. EVM signing uses in-process operator
// keys; hub signing is delegated to the external signer service, with the
// handle carrying the hub account address.
type Resolver struct {
	signURL string
	timeout time.Duration

	mu         sync.RWMutex
	evmSigners map[string]evm.Signer
}

// NewResolver creates a resolver delegating hub signing to signURL.
func NewResolver(signURL string, timeout time.Duration) *Resolver {
	return &Resolver{
		signURL:    signURL,
		timeout:    timeout,
		evmSigners: make(map[string]evm.Signer),
	}
}

// RegisterEVMKey installs an operator key for one domain.
func (r *Resolver) RegisterEVMKey(domainName, hexKey string) error {
	signer, err := evm.NewLocalSigner(hexKey)
	if err != nil {
		return fmt.Errorf("register key for %s: %w", domainName, err)
	}
	r.mu.Lock()
	r.evmSigners[domainName] = signer
	r.mu.Unlock()
	return nil
}

// EVMSigner returns the operator signer for a domain. The handle is unused
// on the EVM side today; per-user keys would hang off it.
func (r *Resolver) EVMSigner(_ context.Context, _ string, domainName string) (evm.Signer, error) {
	r.mu.RLock()
	signer, ok := r.evmSigners[domainName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no signer configured for %s", domainName)
	}
	return signer, nil
}

// HubSigner returns a remote signer for the hub account named by the handle.
// The handle is a bech32 account address; any known prefix is accepted and
// converted to the hub's.
func (r *Resolver) HubSigner(_ context.Context, handle string) (hub.Signer, error) {
	if handle == "" {
		return nil, fmt.Errorf("signer handle is required for hub operations")
	}
	address, err := addrcodec.ConvertBech32Prefix(handle, "noble")
	if err != nil {
		return nil, fmt.Errorf("resolve hub account: %w", err)
	}
	return hub.NewRemoteSigner(address, r.signURL, r.timeout), nil
}

// Package addrcodec converts recipient addresses into the bridge's canonical
// 32-byte recipient encoding. The conversion is deterministic and one-way:
// an EVM hex address is left-padded with zero bytes, a Cosmos bech32 address
// has its canonical byte payload right-aligned in the 32-byte buffer.
package addrcodec

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// RecipientLength is the fixed length of the canonical recipient encoding.
const RecipientLength = 32

// EncodeRecipient encodes an address into the canonical 32-byte form.
// Addresses starting with 0x are treated as EVM hex; everything else must be
// a valid bech32 address.
func EncodeRecipient(address string) ([RecipientLength]byte, error) {
	if strings.HasPrefix(address, "0x") || strings.HasPrefix(address, "0X") {
		return encodeHex(address)
	}
	return encodeBech32(address)
}

func encodeHex(address string) ([RecipientLength]byte, error) {
	var out [RecipientLength]byte
	cleaned := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return out, fmt.Errorf("decode hex address %q: %w", address, err)
	}
	if len(raw) == 0 || len(raw) > RecipientLength {
		return out, fmt.Errorf("hex address %q has invalid length %d", address, len(raw))
	}
	copy(out[RecipientLength-len(raw):], raw)
	return out, nil
}

func encodeBech32(address string) ([RecipientLength]byte, error) {
	var out [RecipientLength]byte
	_, words, err := bech32.Decode(address)
	if err != nil {
		return out, fmt.Errorf("decode bech32 address %q: %w", address, err)
	}
	payload, err := bech32.ConvertBits(words, 5, 8, false)
	if err != nil {
		return out, fmt.Errorf("convert bech32 payload of %q: %w", address, err)
	}
	if len(payload) == 0 || len(payload) > RecipientLength {
		return out, fmt.Errorf("bech32 address %q has invalid payload length %d", address, len(payload))
	}
	copy(out[RecipientLength-len(payload):], payload)
	return out, nil
}

// Bech32Prefix returns the human-readable part of a bech32 address.
func Bech32Prefix(address string) (string, error) {
	hrp, _, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("decode bech32 address %q: %w", address, err)
	}
	return hrp, nil
}

// ConvertBech32Prefix re-encodes a bech32 address under a different prefix.
// Cosmos chains share the same canonical payload for one key, so the same
// account can be addressed on any chain by swapping the prefix.
func ConvertBech32Prefix(address, prefix string) (string, error) {
	hrp, words, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("decode bech32 address %q: %w", address, err)
	}
	if hrp == prefix {
		return address, nil
	}
	converted, err := bech32.Encode(prefix, words)
	if err != nil {
		return "", fmt.Errorf("re-encode %q with prefix %q: %w", address, prefix, err)
	}
	return converted, nil
}

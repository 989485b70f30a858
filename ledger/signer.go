// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/votingday/kiosk/secret"
)

// Signer signs transfers with the pool key. The key stays in its
// secret.Buffer; it is parsed only for the duration of a signature.
type Signer struct {
	key     *secret.Buffer
	address string
}

// NewSigner validates the secp256k1 key in key and records its address.
// The Signer does not own key; the caller closes it at shutdown.
func NewSigner(key *secret.Buffer) (*Signer, error) {
	s := &Signer{key: key}

	err := key.Use(func(raw []byte) error {
		privateKey, err := crypto.ToECDSA(raw)
		if err != nil {
			return err
		}
		s.address = crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid pool signing key: %w", err)
	}

	return s, nil
}

// GenerateSigner creates a signer over a fresh random key. The returned
// buffer must be closed by the caller.
func GenerateSigner() (*Signer, *secret.Buffer, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate pool key: %w", err)
	}

	key, err := secret.NewFromBytes(crypto.FromECDSA(privateKey))
	if err != nil {
		return nil, nil, err
	}

	signer, err := NewSigner(key)
	if err != nil {
		key.Close()
		return nil, nil, err
	}

	return signer, key, nil
}

// Address is the pool signer's public address.
func (s *Signer) Address() string {
	return s.address
}

// Sign returns the hex-encoded recoverable signature of a 32-byte digest.
func (s *Signer) Sign(digest []byte) (string, error) {
	var signature []byte

	err := s.key.Use(func(raw []byte) error {
		privateKey, err := crypto.ToECDSA(raw)
		if err != nil {
			return err
		}
		signature, err = crypto.Sign(digest, privateKey)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}

	return hexutil.Encode(signature), nil
}

// Verify reports whether signature over digest was produced by address.
func Verify(address string, digest []byte, signature string) bool {
	raw, err := hexutil.Decode(signature)
	if err != nil {
		return false
	}

	publicKey, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return false
	}

	return crypto.PubkeyToAddress(*publicKey).Hex() == address
}

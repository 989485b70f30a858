// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package queue

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/secret"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealedVersion is the first byte of every sealed payload and is
// authenticated along with the job signature.
const sealedVersion byte = 1

const sealedOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

var hkdfInfo = []byte("votingday.settlement.v1")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Keep sub-second precision on the candidate snapshot timestamp
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("queue: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("queue: CBOR decoder initialization failed: " + err.Error())
	}
}

// payload is the part of a job that must not sit in the store in clear:
// it links a voter wallet and the memo secret to a candidate.
type payload struct {
	VoterWallet     string                   `cbor:"1,keyasint"`
	CandidateWallet string                   `cbor:"2,keyasint"`
	Amount          uint64                   `cbor:"3,keyasint"`
	Secret          string                   `cbor:"4,keyasint"`
	Candidate       models.CandidateSnapshot `cbor:"5,keyasint"`
	QueuedAt        time.Time                `cbor:"6,keyasint"`
}

// sealer encrypts payloads with XChaCha20-Poly1305 under a key derived
// from the pool key with HKDF-SHA256.
type sealer struct {
	key *secret.Buffer
}

func newSealer(master *secret.Buffer) (*sealer, error) {
	var derived []byte
	err := master.Use(func(ikm []byte) error {
		reader := hkdf.New(sha256.New, ikm, nil, hkdfInfo)
		derived = make([]byte, chacha20poly1305.KeySize)
		_, err := io.ReadFull(reader, derived)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("derive settlement key: %w", err)
	}

	key, err := secret.NewFromBytes(derived)
	if err != nil {
		return nil, err
	}
	return &sealer{key: key}, nil
}

func (s *sealer) Close() error {
	return s.key.Close()
}

// seal encodes p and encrypts it bound to signature, so a sealed payload
// cannot be moved onto another job row.
func (s *sealer) seal(p payload, signature string) ([]byte, error) {
	plaintext, err := encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	output := make([]byte, 1+chacha20poly1305.NonceSizeX, sealedOverhead+len(plaintext))
	output[0] = sealedVersion
	copy(output[1:], nonce[:])

	err = s.key.Use(func(key []byte) error {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return err
		}
		output = aead.Seal(output, nonce[:], plaintext, aad(sealedVersion, signature))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}

	return output, nil
}

func (s *sealer) open(sealed []byte, signature string) (payload, error) {
	if len(sealed) < sealedOverhead {
		return payload{}, errors.New("sealed payload too short")
	}
	if sealed[0] != sealedVersion {
		return payload{}, fmt.Errorf("sealed payload version %d not supported", sealed[0])
	}

	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[1+chacha20poly1305.NonceSizeX:]

	var plaintext []byte
	err := s.key.Use(func(key []byte) error {
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return err
		}
		plaintext, err = aead.Open(nil, nonce, ciphertext, aad(sealed[0], signature))
		return err
	})
	if err != nil {
		return payload{}, fmt.Errorf("open payload: %w", err)
	}

	var p payload
	if err := decMode.Unmarshal(plaintext, &p); err != nil {
		return payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func aad(version byte, signature string) []byte {
	out := make([]byte, 1+len(signature))
	out[0] = version
	copy(out[1:], signature)
	return out
}

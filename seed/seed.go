// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/votingday/kiosk/models"
	"github.com/votingday/kiosk/store"
	"gopkg.in/yaml.v3"
)

// MinimumAge is the youngest a candidate may be on the seed date.
const MinimumAge = 18

const dateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)
)

// File is the fixture document.
//
//	voters:
//	  - rfid_tag: RFID-0001
//	    fingerprint_hash: 9f86d08...
//	    wallet: {public_key: ..., encryption_method: NACL_SECRETBOX}
//	candidates:
//	  - full_name: Ada Lovelace
//	    national_id: NID-1815
//	    date_of_birth: 1815-12-10
//	    ...
type File struct {
	Voters     []Voter     `yaml:"voters"`
	Candidates []Candidate `yaml:"candidates"`
}

type Wallet struct {
	PublicKey           string `yaml:"public_key"`
	EncryptedPrivateKey string `yaml:"encrypted_private_key"`
	IV                  string `yaml:"iv"`
	EncryptionKey       string `yaml:"encryption_key"`
	EncryptionMethod    string `yaml:"encryption_method"`
}

type Voter struct {
	RFIDTag         string `yaml:"rfid_tag"`
	FingerprintHash string `yaml:"fingerprint_hash"`
	Wallet          Wallet `yaml:"wallet"`
}

type Candidate struct {
	FullName           string `yaml:"full_name"`
	NationalID         string `yaml:"national_id"`
	DateOfBirth        string `yaml:"date_of_birth"`
	Address            string `yaml:"address"`
	Email              string `yaml:"email"`
	PhoneNumber        string `yaml:"phone_number"`
	Party              string `yaml:"party"`
	Position           string `yaml:"position"`
	RegistrationStatus string `yaml:"registration_status"`
	Wallet             Wallet `yaml:"wallet"`
}

// Result counts what Apply wrote.
type Result struct {
	Voters     int
	Candidates int
}

// Load reads and parses a fixture file. It does not validate.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Validate checks every record against the registration rules as of now
// and reports all problems at once.
func (f *File) Validate(now time.Time) error {
	var errs []error

	tags := make(map[string]bool)
	for i, v := range f.Voters {
		where := fmt.Sprintf("voters[%d]", i)
		if strings.TrimSpace(v.RFIDTag) == "" {
			errs = append(errs, fmt.Errorf("%s: rfid_tag is required", where))
		} else if tags[v.RFIDTag] {
			errs = append(errs, fmt.Errorf("%s: duplicate rfid_tag %q", where, v.RFIDTag))
		}
		tags[v.RFIDTag] = true

		if v.FingerprintHash == "" {
			errs = append(errs, fmt.Errorf("%s: fingerprint_hash is required", where))
		}
		if err := v.Wallet.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	ids := make(map[string]bool)
	for i, c := range f.Candidates {
		where := fmt.Sprintf("candidates[%d]", i)
		if c.NationalID != "" && ids[c.NationalID] {
			errs = append(errs, fmt.Errorf("%s: duplicate national_id %q", where, c.NationalID))
		}
		ids[c.NationalID] = true

		for _, err := range c.validate(now) {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	return errors.Join(errs...)
}

func (c Candidate) validate(now time.Time) []error {
	var errs []error

	required := []struct{ field, value string }{
		{"full_name", c.FullName},
		{"national_id", c.NationalID},
		{"address", c.Address},
		{"party", c.Party},
		{"position", c.Position},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.field))
		}
	}

	dob, err := time.Parse(dateLayout, c.DateOfBirth)
	if err != nil {
		errs = append(errs, errors.New("date_of_birth must be YYYY-MM-DD"))
	} else if age := Age(dob, now); age < MinimumAge {
		errs = append(errs, fmt.Errorf("candidate must be at least %d years old, current age: %d", MinimumAge, age))
	}

	if !emailPattern.MatchString(c.Email) {
		errs = append(errs, errors.New("invalid email format"))
	}
	if !phonePattern.MatchString(c.PhoneNumber) {
		errs = append(errs, errors.New("invalid phone number format"))
	}

	switch c.RegistrationStatus {
	case "", models.StatusPending, models.StatusBiometric, models.StatusCompleted:
	default:
		errs = append(errs, fmt.Errorf("unknown registration_status %q", c.RegistrationStatus))
	}

	if err := c.Wallet.validate(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func (w Wallet) validate() error {
	switch w.EncryptionMethod {
	case "", models.EncryptionNaclSecretbox, models.EncryptionAESGCM:
		return nil
	default:
		return fmt.Errorf("unknown encryption_method %q", w.EncryptionMethod)
	}
}

func (w Wallet) ref() models.WalletRef {
	return models.WalletRef{
		PublicKey:           w.PublicKey,
		EncryptedPrivateKey: w.EncryptedPrivateKey,
		IV:                  w.IV,
		EncryptionKey:       w.EncryptionKey,
		EncryptionMethod:    w.EncryptionMethod,
	}
}

// Age returns the age in whole years on now for someone born on dob.
func Age(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// Apply validates f and upserts every record. Voters are matched by RFID
// tag and candidates by national id; vote state and tallies already in
// the store are never touched.
func Apply(ctx context.Context, s store.Identity, f *File, now time.Time) (Result, error) {
	if err := f.Validate(now); err != nil {
		return Result{}, fmt.Errorf("invalid seed file: %w", err)
	}

	var result Result

	for _, v := range f.Voters {
		voter := &models.Voter{
			RFIDTag:         v.RFIDTag,
			FingerprintHash: v.FingerprintHash,
			Wallet:          v.Wallet.ref(),
		}
		if err := s.UpsertVoter(ctx, voter); err != nil {
			return result, fmt.Errorf("seed voter %s: %w", v.RFIDTag, err)
		}
		result.Voters++
	}

	for _, c := range f.Candidates {
		// Already validated
		dob, _ := time.Parse(dateLayout, c.DateOfBirth)
		candidate := &models.Candidate{
			FullName:           c.FullName,
			NationalID:         c.NationalID,
			DateOfBirth:        dob,
			Address:            c.Address,
			Email:              c.Email,
			PhoneNumber:        c.PhoneNumber,
			Party:              c.Party,
			Position:           c.Position,
			RegistrationStatus: c.RegistrationStatus,
			Wallet:             c.Wallet.ref(),
		}
		if err := s.UpsertCandidate(ctx, candidate); err != nil {
			return result, fmt.Errorf("seed candidate %s: %w", c.NationalID, err)
		}
		result.Candidates++
	}

	return result, nil
}

// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

// Package webhook validates inbound payment webhook signatures.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is how far a signed timestamp may drift from the current
// time before the signature is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

// SignatureValidator verifies a payment webhook payload against one signing
// secret. The platform holds several secrets (its own account plus connected
// marketplace accounts); callers try validators in order, first success wins.
type SignatureValidator struct {
	secret    string
	tolerance time.Duration
	// now is overridable for tests.
	now func() time.Time
}

// NewSignatureValidator creates a validator for a single signing secret.
func NewSignatureValidator(secret string) *SignatureValidator {
	return &SignatureValidator{
		secret:    secret,
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// Verify checks the signature header against the payload. The header carries
// a signed timestamp and one or more v1 signatures:
//
//	t=1712000000,v1=5257a869e7...,v1=bf1d3ae4a2...
//
// The signed message is "<timestamp>.<payload>" and the signature is its
// hex-encoded HMAC-SHA256 under the signing secret.
func (v *SignatureValidator) Verify(payload []byte, signatureHeader string) error {
	if v.secret == "" {
		return fmt.Errorf("webhook signing secret not configured")
	}
	if signatureHeader == "" {
		return fmt.Errorf("missing webhook signature header")
	}

	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	if v.tolerance > 0 {
		signedAt := time.Unix(timestamp, 0)
		if v.now().Sub(signedAt) > v.tolerance || signedAt.Sub(v.now()) > v.tolerance {
			return fmt.Errorf("webhook timestamp outside of tolerance")
		}
	}

	mac := hmac.New(sha256.New, []byte(v.secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}

	return fmt.Errorf("webhook signature does not match expected signature")
}

// parseSignatureHeader splits the signature header into its timestamp and v1
// signature values.
func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64 = -1
	var signatures []string

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid webhook timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if timestamp < 0 {
		return 0, nil, fmt.Errorf("webhook signature header missing timestamp")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("webhook signature header missing v1 signature")
	}

	return timestamp, signatures, nil
}

// Sign computes a signature header for a payload at the given time. Exported
// for tests and local tooling that need to produce valid webhook requests.
func Sign(secret string, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

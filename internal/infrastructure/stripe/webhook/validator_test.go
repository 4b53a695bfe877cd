// Copyright The Classloop Authors.
// SPDX-License-Identifier: MIT

package webhook

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureValidator_Verify(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	newValidator := func(secret string) *SignatureValidator {
		v := NewSignatureValidator(secret)
		v.now = func() time.Time { return now }
		return v
	}

	t.Run("valid signature passes", func(t *testing.T) {
		v := newValidator("whsec_test")
		header := Sign("whsec_test", payload, now)
		assert.NoError(t, v.Verify(payload, header))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		v := newValidator("whsec_test")
		header := Sign("whsec_other", payload, now)
		assert.Error(t, v.Verify(payload, header))
	})

	t.Run("tampered payload fails", func(t *testing.T) {
		v := newValidator("whsec_test")
		header := Sign("whsec_test", payload, now)
		assert.Error(t, v.Verify([]byte(`{"id":"evt_999"}`), header))
	})

	t.Run("timestamp outside tolerance fails", func(t *testing.T) {
		v := newValidator("whsec_test")
		header := Sign("whsec_test", payload, now.Add(-6*time.Minute))
		err := v.Verify(payload, header)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tolerance")
	})

	t.Run("timestamp within tolerance passes", func(t *testing.T) {
		v := newValidator("whsec_test")
		header := Sign("whsec_test", payload, now.Add(-4*time.Minute))
		assert.NoError(t, v.Verify(payload, header))
	})

	t.Run("future timestamp outside tolerance fails", func(t *testing.T) {
		v := newValidator("whsec_test")
		header := Sign("whsec_test", payload, now.Add(6*time.Minute))
		assert.Error(t, v.Verify(payload, header))
	})

	t.Run("one matching signature among several passes", func(t *testing.T) {
		v := newValidator("whsec_test")
		valid := Sign("whsec_test", payload, now)
		header := fmt.Sprintf("%s,v1=%s", valid, "deadbeef")
		assert.NoError(t, v.Verify(payload, header))
	})

	t.Run("missing header fails", func(t *testing.T) {
		v := newValidator("whsec_test")
		assert.Error(t, v.Verify(payload, ""))
	})

	t.Run("unconfigured secret fails", func(t *testing.T) {
		v := newValidator("")
		header := Sign("whsec_test", payload, now)
		assert.Error(t, v.Verify(payload, header))
	})
}

func TestParseSignatureHeader(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		expectErr     bool
		expectedTS    int64
		expectedCount int
	}{
		{
			name:          "single signature",
			header:        "t=1712000000,v1=abc123",
			expectedTS:    1712000000,
			expectedCount: 1,
		},
		{
			name:          "multiple signatures",
			header:        "t=1712000000,v1=abc123,v1=def456",
			expectedTS:    1712000000,
			expectedCount: 2,
		},
		{
			name:          "ignores unknown schemes",
			header:        "t=1712000000,v0=legacy,v1=abc123",
			expectedTS:    1712000000,
			expectedCount: 1,
		},
		{
			name:      "missing timestamp",
			header:    "v1=abc123",
			expectErr: true,
		},
		{
			name:      "missing signature",
			header:    "t=1712000000",
			expectErr: true,
		},
		{
			name:      "malformed timestamp",
			header:    "t=notanumber,v1=abc123",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, sigs, err := parseSignatureHeader(tt.header)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedTS, ts)
			assert.Len(t, sigs, tt.expectedCount)
		})
	}
}

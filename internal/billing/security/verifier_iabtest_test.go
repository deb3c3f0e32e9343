//go:build iabtest

package security_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bivex/iab-client/internal/billing/security"
)

func TestVerifierTestProducts(t *testing.T) {
	keys := newKeyPair(t)

	t.Run("reserved products pass when opted in", func(t *testing.T) {
		verifier := security.NewVerifier(nil, security.WithTestProducts())
		for _, sku := range []string{"android.test.purchased", "android.test.canceled", "android.test.refunded", "android.test.item_unavailable"} {
			assert.True(t, verifier.Verify(keys.publicB64, `{"productId":"`+sku+`"}`, ""), sku)
		}
	})

	t.Run("other products still need a signature", func(t *testing.T) {
		verifier := security.NewVerifier(nil, security.WithTestProducts())
		assert.False(t, verifier.Verify(keys.publicB64, `{"productId":"android.test.test"}`, ""))
	})

	t.Run("reserved products fail without opting in", func(t *testing.T) {
		verifier := security.NewVerifier(nil)
		assert.False(t, verifier.Verify(keys.publicB64, `{"productId":"android.test.purchased"}`, ""))
	})
}

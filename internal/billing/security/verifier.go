// Package security checks the authenticity of purchase receipts.
package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/awa/go-iap/playstore"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var errNotRSAKey = errors.New("public key is not an RSA key")

// Verifier validates receipt payloads against the developer's public key.
// Verification failure is data: every method returns false rather than an
// error.
type Verifier struct {
	logger            *zap.Logger
	allowTestProducts bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTestProducts lets the reserved android.test.* products through without
// a signature. It only has an effect in binaries built with the iabtest tag.
func WithTestProducts() Option {
	return func(v *Verifier) {
		v.allowTestProducts = testProductsCompiled
	}
}

// NewVerifier creates a Verifier; a nil logger discards output.
func NewVerifier(logger *zap.Logger, opts ...Option) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Verifier{logger: logger}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reports whether signature is a valid base64 RSA/SHA1 signature of
// payload under the base64 X.509 public key.
func (v *Verifier) Verify(publicKeyBase64, payload, signature string) bool {
	if v.allowTestProducts && payload != "" && isTestProduct(payload) {
		v.logger.Warn("Skipping signature verification for test product",
			zap.String("product_id", gjson.Get(payload, "productId").String()),
		)
		return true
	}

	if publicKeyBase64 == "" || payload == "" || signature == "" {
		v.logger.Warn("Purchase verification failed: missing data")
		return false
	}

	// VerifySignature does not check the key type, so a non-RSA key is
	// rejected here first.
	if _, err := ParsePublicKey(publicKeyBase64); err != nil {
		v.logger.Warn("Purchase verification failed: invalid public key", zap.Error(err))
		return false
	}

	valid, err := playstore.VerifySignature(publicKeyBase64, []byte(payload), signature)
	if err != nil {
		v.logger.Warn("Purchase verification failed", zap.Error(err))
		return false
	}
	if !valid {
		v.logger.Warn("Purchase signature does not match")
	}
	return valid
}

// ParsePublicKey decodes a base64 X.509 SubjectPublicKeyInfo RSA key.
func ParsePublicKey(publicKeyBase64 string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(publicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errNotRSAKey
	}
	return rsaKey, nil
}

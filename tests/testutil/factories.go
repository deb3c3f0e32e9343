package testutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bivex/iab-client/internal/billing/bundle"
)

// ReceiptFactory signs test receipts with a throwaway RSA key.
type ReceiptFactory struct {
	t       *testing.T
	private *rsa.PrivateKey
	public  string
}

// NewReceiptFactory generates a fresh key pair.
func NewReceiptFactory(t *testing.T) *ReceiptFactory {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	return &ReceiptFactory{
		t:       t,
		private: priv,
		public:  base64.StdEncoding.EncodeToString(der),
	}
}

// PublicKey returns the base64 X.509 public key.
func (f *ReceiptFactory) PublicKey() string {
	return f.public
}

// Sign returns the base64 RSA/SHA1 signature of payload.
func (f *ReceiptFactory) Sign(payload string) string {
	f.t.Helper()
	sum := sha1.Sum([]byte(payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.private, crypto.SHA1, sum[:])
	require.NoError(f.t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

// PurchaseJSON returns a receipt payload for sku.
func (f *ReceiptFactory) PurchaseJSON(sku string) string {
	f.t.Helper()
	payload, err := json.Marshal(map[string]any{
		"orderId":          "GPA." + uuid.New().String()[:8],
		"packageName":      "com.example.app",
		"productId":        sku,
		"purchaseTime":     1700000000000,
		"purchaseState":    0,
		"developerPayload": "payload",
		"purchaseToken":    "token-" + sku,
	})
	require.NoError(f.t, err)
	return string(payload)
}

// ProductJSON returns a listing entry for sku.
func (f *ReceiptFactory) ProductJSON(sku, kind string) string {
	return fmt.Sprintf(`{"productId":"%s","type":"%s","title":"%s","description":"test item","price_currency_code":"USD","price":"$0.99","price_amount_micros":990000}`, sku, kind, sku)
}

// PurchasesPage builds a signed getPurchases reply.
func (f *ReceiptFactory) PurchasesPage(skus []string, continuationToken string) bundle.Bundle {
	data := make([]string, 0, len(skus))
	sigs := make([]string, 0, len(skus))
	for _, sku := range skus {
		payload := f.PurchaseJSON(sku)
		data = append(data, payload)
		sigs = append(sigs, f.Sign(payload))
	}
	b := bundle.New().
		PutInt(bundle.KeyResponseCode, 0).
		PutStrings(bundle.KeyPurchaseItemList, skus).
		PutStrings(bundle.KeyPurchaseDataList, data).
		PutStrings(bundle.KeySignatureList, sigs)
	if continuationToken != "" {
		b.PutString(bundle.KeyContinuationToken, continuationToken)
	}
	return b
}

// ProductsPage builds a getSkuDetails reply.
func (f *ReceiptFactory) ProductsPage(skus []string, kind, continuationToken string) bundle.Bundle {
	details := make([]string, 0, len(skus))
	for _, sku := range skus {
		details = append(details, f.ProductJSON(sku, kind))
	}
	b := bundle.New().
		PutInt(bundle.KeyResponseCode, 0).
		PutStrings(bundle.KeyDetailsList, details)
	if continuationToken != "" {
		b.PutString(bundle.KeyContinuationToken, continuationToken)
	}
	return b
}

// SuccessResult builds the extras of a successful confirmation flow.
func (f *ReceiptFactory) SuccessResult(sku string) bundle.Bundle {
	payload := f.PurchaseJSON(sku)
	return bundle.New().
		PutInt(bundle.KeyResponseCode, 0).
		PutString(bundle.KeyPurchaseData, payload).
		PutString(bundle.KeyPurchaseSignature, f.Sign(payload))
}

// SKUs returns n distinct product ids.
func SKUs(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s.%d", prefix, i)
	}
	return out
}

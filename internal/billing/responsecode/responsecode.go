// Package responsecode normalizes the RESPONSE_CODE field of service replies
// and UI results. The billing service is known to send the field as a 32-bit
// integer, a 64-bit integer, or not at all; that quirk is tolerated here and
// nowhere else.
package responsecode

import (
	"math"

	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/bundle"
	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
)

// Response codes reported by the billing service.
const (
	OK                 = 0
	UserCanceled       = 1
	ServiceUnavailable = 2
	BillingUnavailable = 3
	ItemUnavailable    = 4
	DeveloperError     = 5
	Error              = 6
	ItemAlreadyOwned   = 7
	ItemNotOwned       = 8
)

// Decoder extracts response codes from bundles.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder creates a decoder; a nil logger discards output.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// FromResponse decodes the code of a service reply.
func (d *Decoder) FromResponse(b bundle.Bundle) (int, error) {
	return d.decode(b, "response", domainErrors.MsgUnexpectedResponse)
}

// FromResult decodes the code embedded in a UI hand-off result.
func (d *Decoder) FromResult(b bundle.Bundle) (int, error) {
	return d.decode(b, "result", domainErrors.MsgUnexpectedResult)
}

func (d *Decoder) decode(b bundle.Bundle, source, message string) (int, error) {
	v := b.Get(bundle.KeyResponseCode)
	switch code := v.(type) {
	case nil:
		d.logger.Warn("Response code missing, assuming OK",
			zap.String("source", source),
		)
		return OK, nil
	case int32:
		return int(code), nil
	case int:
		if code < math.MinInt32 || code > math.MaxInt32 {
			break
		}
		return code, nil
	case int64:
		if code < math.MinInt32 || code > math.MaxInt32 {
			break
		}
		return int(code), nil
	}

	d.logger.Error("Unexpected type for response code",
		zap.String("source", source),
		zap.String("type", typeName(v)),
	)
	return 0, domainErrors.UnexpectedType(message)
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, float32:
		return "float"
	case int, int32, int64:
		return "integer(out of range)"
	default:
		return "other"
	}
}

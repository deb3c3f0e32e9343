// Package fetch assembles product and purchase listings from the billing
// service's paged replies.
package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/billing/bundle"
	"github.com/bivex/iab-client/internal/billing/connection"
	"github.com/bivex/iab-client/internal/billing/responsecode"
	"github.com/bivex/iab-client/internal/billing/security"
	"github.com/bivex/iab-client/internal/domain/entity"
	domainErrors "github.com/bivex/iab-client/internal/domain/errors"
	"github.com/bivex/iab-client/internal/domain/valueobject"
)

// MaxProductIDsPerRequest is the largest id list the service accepts in one
// product details call.
const MaxProductIDsPerRequest = 20

// Config holds the request parameters shared by every page.
type Config struct {
	PackageName     string
	PublicKeyBase64 string
	APIVersion      valueobject.APIVersion
}

// Fetcher drives the paged listing protocol. It must only be called from the
// command queue worker.
type Fetcher struct {
	cfg      Config
	decoder  *responsecode.Decoder
	verifier *security.Verifier
	logger   *zap.Logger
}

// New creates a Fetcher
func New(cfg Config, decoder *responsecode.Decoder, verifier *security.Verifier, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:      cfg,
		decoder:  decoder,
		verifier: verifier,
		logger:   logger,
	}
}

// Products returns the listings for ids. Ids are requested in chunks of
// MaxProductIDsPerRequest and each chunk follows its continuation tokens.
func (f *Fetcher) Products(ctx context.Context, svc connection.Service, kind valueobject.ProductKind, ids []string) (*entity.Products, error) {
	if len(ids) == 0 {
		return nil, domainErrors.ArgumentMissing("product ids are required")
	}

	products := entity.NewProducts()
	for start := 0; start < len(ids); start += MaxProductIDsPerRequest {
		end := start + MaxProductIDsPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		err := f.paginate(ctx, func(token string) (bundle.Bundle, error) {
			query := bundle.New().PutStrings(bundle.KeyItemIDList, chunk)
			if token != "" {
				query.PutString(bundle.KeyContinuationToken, token)
			}
			return svc.GetSkuDetails(ctx, f.cfg.APIVersion.Int(), f.cfg.PackageName, kind, query)
		}, func(page bundle.Bundle, code int) error {
			details, ok := page.Strings(bundle.KeyDetailsList)
			if !ok {
				return domainErrors.PurchaseDataError(code, domainErrors.MsgPurchaseDataListEmpty)
			}
			for _, detail := range details {
				product, err := entity.ParseProduct(detail)
				if err != nil {
					return domainErrors.Wrap(domainErrors.KindBadResponse, domainErrors.CodeBadResponse, domainErrors.MsgBadResponse, err)
				}
				products.Add(product)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	f.logger.Debug("Products fetched",
		zap.String("kind", kind.String()),
		zap.Int("requested", len(ids)),
		zap.Int("received", products.Size()),
	)
	return products, nil
}

// Purchases returns every owned purchase of kind. Each receipt is verified;
// one bad signature fails the whole listing.
func (f *Fetcher) Purchases(ctx context.Context, svc connection.Service, kind valueobject.ProductKind) (*entity.Purchases, error) {
	purchases := entity.NewPurchases()

	err := f.paginate(ctx, func(token string) (bundle.Bundle, error) {
		return svc.GetPurchases(ctx, f.cfg.APIVersion.Int(), f.cfg.PackageName, kind, token)
	}, func(page bundle.Bundle, code int) error {
		data, ok := page.Strings(bundle.KeyPurchaseDataList)
		if !ok {
			return domainErrors.PurchaseDataError(code, domainErrors.MsgPurchaseDataListEmpty)
		}
		signatures, _ := page.Strings(bundle.KeySignatureList)
		if len(signatures) != len(data) {
			return domainErrors.BadResponse(domainErrors.MsgListSizeMismatch)
		}
		skus, _ := page.Strings(bundle.KeyPurchaseItemList)

		for i, payload := range data {
			if !f.verifier.Verify(f.cfg.PublicKeyBase64, payload, signatures[i]) {
				return domainErrors.VerificationFailed()
			}
			purchase, err := entity.ParsePurchase(payload, signatures[i])
			if err != nil {
				return domainErrors.Wrap(domainErrors.KindBadResponse, domainErrors.CodeBadResponse, domainErrors.MsgBadResponse, err)
			}
			if len(skus) == len(data) && skus[i] != purchase.Sku {
				f.logger.Warn("Purchase item list disagrees with receipt",
					zap.String("listed", skus[i]),
					zap.String("receipt", purchase.Sku),
				)
			}
			if !purchases.Add(purchase) {
				f.logger.Warn("Duplicate purchase ignored", zap.String("sku", purchase.Sku))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Debug("Purchases fetched",
		zap.String("kind", kind.String()),
		zap.Int("count", purchases.Size()),
	)
	return purchases, nil
}

// paginate requests pages until the service stops sending a continuation
// token. A token the service already sent once fails the fetch.
func (f *Fetcher) paginate(ctx context.Context, request func(token string) (bundle.Bundle, error), consume func(page bundle.Bundle, code int) error) error {
	token := ""
	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := request(token)
		if err != nil {
			return domainErrors.RemoteException(err)
		}
		if page.IsEmpty() {
			return domainErrors.UnexpectedType(domainErrors.MsgNullResponse)
		}

		code, err := f.decoder.FromResponse(page)
		if err != nil {
			return err
		}
		if code != responsecode.OK {
			return domainErrors.PurchaseDataError(code, domainErrors.MsgPurchaseDataError)
		}

		if err := consume(page, code); err != nil {
			return err
		}

		token, _ = page.String(bundle.KeyContinuationToken)
		if token == "" {
			return nil
		}
		if _, dup := seen[token]; dup {
			return domainErrors.BadResponse("continuation token repeated")
		}
		seen[token] = struct{}{}
	}
}

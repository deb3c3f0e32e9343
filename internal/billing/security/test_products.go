package security

import "github.com/tidwall/gjson"

// Products the store answers with canned, unsigned responses.
var testProducts = map[string]struct{}{
	"android.test.purchased":        {},
	"android.test.canceled":         {},
	"android.test.refunded":         {},
	"android.test.item_unavailable": {},
}

func isTestProduct(payload string) bool {
	if !gjson.Valid(payload) {
		return false
	}
	_, ok := testProducts[gjson.Get(payload, "productId").String()]
	return ok
}

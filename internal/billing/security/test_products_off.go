//go:build !iabtest

package security

const testProductsCompiled = false

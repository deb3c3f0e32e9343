//go:build iabtest

package security

const testProductsCompiled = true

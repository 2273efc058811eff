//go:build debug

package vkboot

// Validation defaults on in debug builds.
const defaultValidation = true

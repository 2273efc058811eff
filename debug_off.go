//go:build !debug

package vkboot

const defaultValidation = false

//go:build libcec

package config

// defaultCECEnabled turns the CEC input on when the binary can open an
// adapter.
const defaultCECEnabled = true

//go:build !libcec

package config

// defaultCECEnabled keeps the CEC input off in builds without libcec;
// --cec or cec.enabled still turns it on and fails with a hint.
const defaultCECEnabled = false

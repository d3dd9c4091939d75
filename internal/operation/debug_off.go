//go:build !fedfetch_debug

package operation

const debugChecks = false

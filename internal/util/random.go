// Package util provides utility functions for the FlowCanvas application.
package util

import (
	"math/rand"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified
// length, using math/rand for non-cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.Intn(16)])
	}

	return builder.String()
}

// GenerateFlowID generates a unique flow ID with "f_" prefix.
func GenerateFlowID() string {
	return GenerateRandomID("f_", 24)
}

// GenerateNodeID generates a unique node ID with "n_" prefix.
func GenerateNodeID() string {
	return GenerateRandomID("n_", 24)
}

// GenerateEdgeID generates a unique edge ID with "e_" prefix.
func GenerateEdgeID() string {
	return GenerateRandomID("e_", 24)
}

// GenerateOptionID generates a unique option ID with "o_" prefix.
func GenerateOptionID() string {
	return GenerateRandomID("o_", 24)
}

// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generator produces a verification code with the given number of digits.
// Injectable so tests can force deterministic codes.
type Generator func(length int) (string, error)

// GenerateCode draws a uniformly random integer in [1, 10^length-1] and
// formats it as a zero-padded fixed-width string. Collisions across users
// are acceptable; only the delivery channel has to be unique.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length %d", length)
	}

	limit := int64(1)
	for range length {
		limit *= 10
	}
	limit-- // 10^length - 1

	n, err := rand.Int(rand.Reader, big.NewInt(limit))
	if err != nil {
		return "", fmt.Errorf("failed to generate random code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()+1), nil
}

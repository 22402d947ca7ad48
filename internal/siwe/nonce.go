// Package siwe implements the Sign-In-With-Ethereum message codec and
// signature verification (EIP-4361 message shape, EIP-191 personal
// signatures).
package siwe

import (
	"crypto/rand"

	"github.com/rs/zerolog/log"
)

const nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NonceLength yields just over 140 bits of entropy with a 62-char alphabet,
// above the 128-bit floor a sign-in nonce should carry.
const NonceLength = 24

// GenerateNonce produces a fresh unpredictable alphanumeric nonce. Each
// sign-in attempt gets its own; reuse would open a signed-message replay
// window.
func GenerateNonce() string {
	buf := make([]byte, NonceLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy
		// source; issuing a predictable nonce is not an option.
		log.Panic().Err(err).Msg("failed to read entropy for nonce")
	}
	for i, b := range buf {
		buf[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(buf)
}

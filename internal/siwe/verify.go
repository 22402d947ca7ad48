package siwe

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrInvalidSignature covers undecodable, wrong-length and
	// unrecoverable signatures.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrAddressMismatch is returned when recovery succeeds but the signer
	// is not the address claimed inside the message.
	ErrAddressMismatch = errors.New("recovered address does not match message address")
)

// VerifiedAddress is the outcome of a successful signature check.
type VerifiedAddress struct {
	// Address is the signer, lower-cased for storage as a natural key.
	Address string
	ChainID int
	// Nonce is handed back so the caller can enforce single use against
	// its nonce store; this package does not persist nonces.
	Nonce string
}

// Verify parses rawMessage, recovers the signer from the EIP-191 personal
// hash of the exact raw text, and succeeds only when the recovered address
// case-insensitively equals the one claimed inside the message. Every
// failure mode comes back as an error, never a panic, so the HTTP layer can
// map them all to one uniform "invalid signature" response.
func Verify(rawMessage, signature string) (*VerifiedAddress, error) {
	msg, err := ParseMessage(rawMessage)
	if err != nil {
		return nil, err
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return nil, ErrInvalidSignature
	}
	// Wallets emit V as 27/28; crypto.SigToPub wants 0/1.
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := accounts.TextHash([]byte(rawMessage))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, ErrInvalidSignature
	}

	recovered := crypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), msg.Address) {
		return nil, ErrAddressMismatch
	}

	return &VerifiedAddress{
		Address: strings.ToLower(msg.Address),
		ChainID: msg.ChainID,
		Nonce:   msg.Nonce,
	}, nil
}

package ports

import "github.com/vulpemventures/dinghy/internal/core/domain"

// KeyProvider is the abstraction for any kind of service intended to derive
// keys and addresses from credentials and to sign with them.
// Implementations must never log nor persist credentials.
type KeyProvider interface {
	// IsValidAddress returns whether the given address is valid for the
	// configured network.
	IsValidAddress(address string) bool
	// DeriveAddress returns the address controlled by the given credential.
	DeriveAddress(credential domain.Credential) (string, error)
	// DerivePublicKey returns the serialized public key of the given
	// credential, the one hashed into the derived address.
	DerivePublicKey(credential domain.Credential) ([]byte, error)
	// Sign returns the DER encoded ECDSA signature of the given 32-byte digest.
	Sign(payload []byte, credential domain.Credential) ([]byte, error)
	// SignMessage returns the base64 compact signature of the given message
	// in the Bitcoin signed message format.
	SignMessage(message string, credential domain.Credential) (string, error)
	// VerifyMessage returns whether the given signature of the message has
	// been made with the key controlling the given address.
	VerifyMessage(address, signature, message string) (bool, error)
}

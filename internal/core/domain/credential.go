package domain

import (
	"fmt"
	"strings"
)

const redacted = "[REDACTED]"

var (
	ErrMissingCredential = fmt.Errorf("missing credential")
)

// Credential is an opaque signing secret, either a WIF private key or a
// mnemonic. It never prints nor serializes its content.
type Credential struct {
	secret     string
	passphrase string
}

// NewCredential returns a credential for the given secret. The passphrase
// is used only for mnemonics and can be empty.
func NewCredential(secret, passphrase string) (Credential, error) {
	secret = strings.Join(strings.Fields(secret), " ")
	if secret == "" {
		return Credential{}, ErrMissingCredential
	}
	return Credential{secret, passphrase}, nil
}

// Reveal returns the raw secret and passphrase. Only key providers are
// meant to call it.
func (c Credential) Reveal() (string, string) {
	return c.secret, c.passphrase
}

func (c Credential) IsEmpty() bool {
	return c.secret == ""
}

func (c Credential) String() string {
	return redacted
}

func (c Credential) GoString() string {
	return redacted
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (c Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

package path

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	masterKey      = "m"
	separator      = "/"
	hardenedMarker = "'"
)

// DerivationPath is the list of BIP32 child indexes leading from the master
// key to a derived key. Hardened indexes are offset by HardenedKeyStart.
type DerivationPath []uint32

// ParseDerivationPath accepts both absolute (m/44'/0'/0'/0/0) and relative
// (0'/0/0) paths. Every component can be in decimal or hex (0x) notation
// and whitespace around components is ignored.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	if strPath == "" {
		return nil, ErrMissingDerivationPath
	}

	components := strings.Split(strPath, separator)
	if len(components) < 2 {
		return nil, ErrMalformedDerivationPath
	}
	for i := range components {
		components[i] = strings.TrimSpace(components[i])
		if components[i] == "" {
			return nil, ErrMalformedDerivationPath
		}
	}
	if components[0] == masterKey {
		components = components[1:]
	}

	path := make(DerivationPath, 0, len(components))
	for _, component := range components {
		index, err := parseIndex(component)
		if err != nil {
			return nil, err
		}
		path = append(path, index)
	}
	return path, nil
}

func (p DerivationPath) String() string {
	if len(p) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(masterKey)
	for _, index := range p {
		sb.WriteString(separator)
		if index >= hdkeychain.HardenedKeyStart {
			sb.WriteString(strconv.FormatUint(uint64(index-hdkeychain.HardenedKeyStart), 10))
			sb.WriteString(hardenedMarker)
			continue
		}
		sb.WriteString(strconv.FormatUint(uint64(index), 10))
	}
	return sb.String()
}

func parseIndex(component string) (uint32, error) {
	var offset uint32
	if strings.HasSuffix(component, hardenedMarker) {
		offset = hdkeychain.HardenedKeyStart
		component = strings.TrimSpace(strings.TrimSuffix(component, hardenedMarker))
	}

	value, err := strconv.ParseUint(component, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidPathIndex, component)
	}
	if offset > 0 && value >= uint64(hdkeychain.HardenedKeyStart) {
		return 0, fmt.Errorf(
			"%w: hardened index %d must be lower than %d",
			ErrInvalidPathIndex, value, hdkeychain.HardenedKeyStart,
		)
	}
	return offset + uint32(value), nil
}

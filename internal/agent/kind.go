package agent

import (
	"fmt"
	"strings"
)

// Kind tags an agent configuration. The set is closed: adding an agent means
// adding a constant here and an entry in Kinds.
type Kind string

const (
	BankSupport Kind = "bank_support"
)

// Kinds lists every known agent kind.
var Kinds = []Kind{BankSupport}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// ParseKind normalizes s and rejects tags outside the known set.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Package password hashes and verifies user credentials.
//
// New hashes are bcrypt. Hashes imported from the legacy user store use the
// werkzeug "method$salt$hex" layout (pbkdf2:sha256 or scrypt); they verify
// here and report NeedsRehash so the caller can upgrade them on login.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// MinLength is the minimum length of a strong password.
const MinLength = 8

// SpecialChars is the set of characters that satisfy the special-character rule.
const SpecialChars = `!@#$%^&*(),.?":{}|<>`

// defaultPBKDF2Iterations applies to legacy hashes that omit the iteration count.
const defaultPBKDF2Iterations = 600000

// ErrUnsupportedHash is returned for stored hashes in an unknown format.
var ErrUnsupportedHash = errors.New("unsupported password hash format")

// Hasher creates and checks password hashes.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost. Out-of-range costs
// fall back to bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. needsRehash is true when the
// stored hash is valid but not a bcrypt hash at the current cost.
func (h *Hasher) Verify(hash, plain string) (ok bool, needsRehash bool, err error) {
	if isLegacy(hash) {
		ok, err = verifyLegacy(hash, plain)
		return ok, ok, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, false, nil
		}
		return false, false, err
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true, false, nil
	}
	return true, cost != h.cost, nil
}

// IsStrong reports whether plain has at least MinLength characters and
// contains a lower-case letter, an upper-case letter, a digit and one of
// SpecialChars.
func IsStrong(plain string) bool {
	if len([]rune(plain)) < MinLength {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range plain {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(SpecialChars, r):
			special = true
		}
	}
	return lower && upper && digit && special
}

func isLegacy(hash string) bool {
	return strings.HasPrefix(hash, "pbkdf2:") || strings.HasPrefix(hash, "scrypt:")
}

func verifyLegacy(hash, plain string) (bool, error) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 {
		return false, ErrUnsupportedHash
	}
	method, salt, want := parts[0], parts[1], parts[2]

	expected, err := hex.DecodeString(want)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnsupportedHash, err)
	}

	got, err := deriveLegacy(method, plain, salt, len(expected))
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, expected) == 1, nil
}

// deriveLegacy recomputes a werkzeug-style derived key. Method strings look
// like "pbkdf2:sha256:600000" or "scrypt:32768:8:1".
func deriveLegacy(method, plain, salt string, keyLen int) ([]byte, error) {
	fields := strings.Split(method, ":")
	switch fields[0] {
	case "pbkdf2":
		if len(fields) < 2 || fields[1] != "sha256" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, method)
		}
		iterations := defaultPBKDF2Iterations
		if len(fields) > 2 {
			n, err := strconv.Atoi(fields[2])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: bad iteration count in %s", ErrUnsupportedHash, method)
			}
			iterations = n
		}
		return pbkdf2.Key([]byte(plain), []byte(salt), iterations, keyLen, sha256.New), nil

	case "scrypt":
		n, r, p := 32768, 8, 1
		if len(fields) == 4 {
			var err error
			if n, err = strconv.Atoi(fields[1]); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, method)
			}
			if r, err = strconv.Atoi(fields[2]); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, method)
			}
			if p, err = strconv.Atoi(fields[3]); err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, method)
			}
		}
		return scrypt.Key([]byte(plain), []byte(salt), n, r, p, keyLen)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedHash, method)
}

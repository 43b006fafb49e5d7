// Package address derives the base58 account addresses the ledger uses for
// vaults, share mints, strategies and token accounts.
package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Size is the length of an address in bytes.
const Size = 32

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

// Address errors
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrMaxSeedLength  = errors.New("seed exceeds 32 bytes")
	ErrTooManySeeds   = errors.New("more than 16 seeds")
	ErrNoViableBump   = errors.New("no viable bump seed")
)

// Address is a 32-byte account address.
type Address [Size]byte

// DefaultProgramID is the program address used when none is configured.
var DefaultProgramID = FromSeed("solana-vault-ledger")

// Parse decodes a base58 address.
func Parse(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, s, err)
	}
	if len(raw) != Size {
		return a, fmt.Errorf("%w: %s decodes to %d bytes", ErrInvalidAddress, s, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParse is Parse for constants; it panics on malformed input.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromSeed hashes an arbitrary label into an address. Useful for fixtures and
// simulated accounts that have no key pair.
func FromSeed(label string) Address {
	return Address(sha256.Sum256([]byte(label)))
}

// String returns the base58 encoding.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// IsOnCurve reports whether b is a valid ed25519 point encoding.
func IsOnCurve(b []byte) bool {
	if len(b) != Size {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// FindProgramAddress derives an off-curve address from seeds and a program id.
// The bump is searched downward from 255; the first hash that is not a valid
// curve point wins.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	if len(seeds) > maxSeeds-1 {
		return Address{}, 0, ErrTooManySeeds
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return Address{}, 0, ErrMaxSeedLength
		}
	}

	for bump := 255; bump > 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(program[:])
		h.Write([]byte(pdaMarker))

		var out Address
		copy(out[:], h.Sum(nil))
		if !IsOnCurve(out[:]) {
			return out, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrNoViableBump
}

func derive(program Address, seeds ...[]byte) (Address, error) {
	a, _, err := FindProgramAddress(seeds, program)
	return a, err
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// Vault derives the vault address for (mint, index).
// Seeds: ["vault", mint, index_le]
func Vault(program, mint Address, index uint64) (Address, error) {
	return derive(program, []byte("vault"), mint[:], le64(index))
}

// SharesMint derives the share mint of a vault.
// Seeds: ["shares", vault]
func SharesMint(program, vault Address) (Address, error) {
	return derive(program, []byte("shares"), vault[:])
}

// Strategy derives the address of the index-th strategy attached to a vault.
// Seeds: ["strategy", vault, index_le]
func Strategy(program, vault Address, index uint64) (Address, error) {
	return derive(program, []byte("strategy"), vault[:], le64(index))
}

// TokenAccount derives the token account holding mint for owner.
// Seeds: [owner, "token", mint]
func TokenAccount(program, owner, mint Address) (Address, error) {
	return derive(program, owner[:], []byte("token"), mint[:])
}

package utils

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDLength is the length of every generated record id and blob key stem.
const IDLength = 32

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func NanoID() string {
	return gonanoid.MustGenerate(idAlphabet, IDLength)
}

// IsNanoID reports whether s has the shape NanoID produces. Seed files carry
// hand-pasted ids, so they are checked against it.
func IsNanoID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(idAlphabet, c) {
			return false
		}
	}
	return true
}

package certificate

import (
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/pot-code/progress-engine/internal/infrastructure/uuid"
	"golang.org/x/crypto/blake2b"
)

// NumberAlphabet upper case letters and digits without the look-alikes 0/O and 1/I
const NumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NumberSuffixLength random part of a certificate number
const NumberSuffixLength = 8

// verificationCodeLength hex characters kept from the digest
const verificationCodeLength = 10

// NumberGenerator certificate numbers look like CERT-20240131-7KQ2M9XD
type NumberGenerator struct {
	Suffix uuid.Generator
}

// NewNumberGenerator ...
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{uuid.NewAlphabetGenerator(NumberAlphabet, NumberSuffixLength)}
}

// Generate number issued at t
func (ng *NumberGenerator) Generate(t time.Time) (string, error) {
	suffix, err := ng.Suffix.Generate()
	if err != nil {
		return "", err
	}
	return "CERT-" + t.UTC().Format("20060102") + "-" + suffix, nil
}

// VerificationCode keyed digest binding a number to its holder and formation
func VerificationCode(secret []byte, number, userID, formationID string) string {
	key := secret
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// only returned for keys longer than blake2b.Size
		panic(err)
	}
	h.Write([]byte(number + "|" + userID + "|" + formationID))
	return hex.EncodeToString(h.Sum(nil))[:verificationCodeLength]
}

// CodeMatches constant time comparison of a supplied code
func CodeMatches(expected, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}

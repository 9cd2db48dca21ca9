package certificate

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pot-code/progress-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numberPattern = regexp.MustCompile(`^CERT-\d{8}-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{8}$`)

func TestNumberGenerator(t *testing.T) {
	issuedAt := time.Date(2024, 1, 31, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	ng := NewNumberGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number, err := ng.Generate(issuedAt)
		require.NoError(t, err)
		assert.Regexp(t, numberPattern, number)
		assert.True(t, strings.HasPrefix(number, "CERT-20240131-"), "date is taken in UTC")
		seen[number] = true
	}
	assert.Greater(t, len(seen), 45)

	fixed := &NumberGenerator{Suffix: &testutil.FixedGenerator{IDs: []string{"7KQ2M9XD"}}}
	number, err := fixed.Generate(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "CERT-20240201-7KQ2M9XD", number)
}

func TestVerificationCode(t *testing.T) {
	secret := []byte("certificate-secret")
	code := VerificationCode(secret, "CERT-20240201-7KQ2M9XD", "u1", "f1")

	assert.Regexp(t, `^[0-9a-f]{10}$`, code)
	assert.Equal(t, code, VerificationCode(secret, "CERT-20240201-7KQ2M9XD", "u1", "f1"), "deterministic")

	tests := []struct {
		name   string
		secret []byte
		number string
		user   string
		form   string
	}{
		{"other secret", []byte("another-secret"), "CERT-20240201-7KQ2M9XD", "u1", "f1"},
		{"other number", secret, "CERT-20240201-7KQ2M9XE", "u1", "f1"},
		{"other user", secret, "CERT-20240201-7KQ2M9XD", "u2", "f1"},
		{"other formation", secret, "CERT-20240201-7KQ2M9XD", "u1", "f2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, code, VerificationCode(tt.secret, tt.number, tt.user, tt.form))
		})
	}

	long := []byte(strings.Repeat("k", 100))
	assert.Regexp(t, `^[0-9a-f]{10}$`, VerificationCode(long, "n", "u", "f"), "keys over 64 bytes are accepted")
	assert.Regexp(t, `^[0-9a-f]{10}$`, VerificationCode(nil, "n", "u", "f"))
}

func TestCodeMatches(t *testing.T) {
	assert.True(t, CodeMatches("0123456789", "0123456789"))
	assert.False(t, CodeMatches("0123456789", "0123456788"))
	assert.False(t, CodeMatches("0123456789", "012345678"))
	assert.False(t, CodeMatches("0123456789", ""))
}

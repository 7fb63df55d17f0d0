package roomcode

import (
	"math/rand"
	"strings"
	"time"
)

// Room codes look like "abc-def-ghi": three groups of three lowercase ASCII
// letters separated by hyphens. Short enough to read out loud, long enough
// that guessing one is pointless.
const (
	codeLength  = 11
	groupLength = 3
	letters     = "abcdefghijklmnopqrstuvwxyz"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// Generate returns a fresh random room code.
func Generate() string {
	var code strings.Builder
	code.Grow(codeLength)

	for i := 0; i < 3*groupLength; i++ {
		if i > 0 && i%groupLength == 0 {
			code.WriteByte('-')
		}
		code.WriteByte(letters[rand.Intn(len(letters))])
	}

	return code.String()
}

// IsValid reports whether code is a well-formed room code. Only lowercase
// ASCII letters in the groups and the two separating hyphens are accepted.
func IsValid(code string) bool {
	if len(code) != codeLength {
		return false
	}

	for i := 0; i < codeLength; i++ {
		if i == groupLength || i == 2*groupLength+1 {
			if code[i] != '-' {
				return false
			}
			continue
		}

		if code[i] < 'a' || code[i] > 'z' {
			return false
		}
	}

	return true
}

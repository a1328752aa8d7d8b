package detectors

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/spaolacci/murmur3"
)

// Fingerprint returns a normalized-content hash: case-folded, whitespace
// collapsed, murmur3 with default seed, hex encoded. "Hello World" and
// "hello   world" produce the same fingerprint.
func Fingerprint(text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	val := murmur3.Sum64([]byte(norm))
	return fmt.Sprintf("%016x", val)
}

// CapsRatio returns the fraction of alphabetic characters which are
// uppercase, and the count of alphabetic characters. Non-letters are
// excluded from both.
func CapsRatio(text string) (float64, int) {
	letters, upper := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

func channelIgnored(ignored []string, channelID string) bool {
	for _, id := range ignored {
		if id == channelID {
			return true
		}
	}
	return false
}

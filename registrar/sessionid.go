package registrar

import (
	"fmt"
	"time"

	"github.com/mazen160/go-random"
)

const (
	// SessionIDLength is the length the registrar expects for uniqueSessionId.
	SessionIDLength = 18

	sessionIDPrefixLength = 5
)

// NewSessionID returns a random 5-character prefix followed by the 13-digit
// millisecond clock, always SessionIDLength characters long.
func NewSessionID() (string, error) {
	prefix, err := random.String(sessionIDPrefixLength)
	if err != nil {
		return "", fmt.Errorf("random session id prefix: %w", err)
	}
	if len(prefix) < sessionIDPrefixLength {
		return "", fmt.Errorf("random session id prefix too short: %q", prefix)
	}
	return fmt.Sprintf("%s%013d", prefix[:sessionIDPrefixLength], time.Now().UnixMilli()), nil
}

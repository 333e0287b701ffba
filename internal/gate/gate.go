package gate

import "crypto/subtle"

// Decision is the outcome of a password check.
type Decision bool

const (
	Denied  Decision = false
	Granted Decision = true
)

func (d Decision) String() string {
	if d == Granted {
		return "granted"
	}
	return "denied"
}

// Gate compares submitted passwords against the configured one.
type Gate struct {
	expected []byte
}

// New returns a gate expecting password.
func New(password string) *Gate {
	return &Gate{expected: []byte(password)}
}

// Authenticate grants access iff submitted equals the expected password
// exactly: case sensitive, no trimming. The comparison runs in constant time
// for equal-length inputs.
func (g *Gate) Authenticate(submitted string) Decision {
	if subtle.ConstantTimeCompare([]byte(submitted), g.expected) == 1 {
		return Granted
	}
	return Denied
}

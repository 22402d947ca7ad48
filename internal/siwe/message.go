package siwe

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedMessage is returned when raw text does not match the EIP-4361
// grammar this codec emits.
var ErrMalformedMessage = errors.New("malformed sign-in message")

// Version is the only EIP-4361 version this codec speaks.
const Version = "1"

const headerSuffix = " wants you to sign in with your Ethereum account:"

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Message is the structured sign-in message a wallet signs. String and
// ParseMessage are exact inverses: signature recovery depends on
// byte-identical re-serialization.
type Message struct {
	Domain    string
	Address   string
	Statement string
	URI       string
	Version   string
	ChainID   int
	Nonce     string
	IssuedAt  string
}

// String serializes the message in EIP-4361 layout. Same inputs always
// produce the same byte string.
func (m *Message) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n%s\n\n", m.Domain, headerSuffix, m.Address)
	if m.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Statement)
	}
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	fmt.Fprintf(&b, "Version: %s\n", m.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt)
	return b.String()
}

// ParseMessage is the inverse of String.
func ParseMessage(raw string) (*Message, error) {
	lines := strings.Split(raw, "\n")
	if len(lines) < 8 {
		return nil, ErrMalformedMessage
	}

	msg := &Message{}

	dom, ok := strings.CutSuffix(lines[0], headerSuffix)
	if !ok || dom == "" {
		return nil, ErrMalformedMessage
	}
	msg.Domain = dom

	if !addressPattern.MatchString(lines[1]) {
		return nil, ErrMalformedMessage
	}
	msg.Address = lines[1]

	if lines[2] != "" {
		return nil, ErrMalformedMessage
	}

	// Optional statement block, terminated by a blank line.
	i := 3
	if lines[i] != "" && !strings.HasPrefix(lines[i], "URI: ") {
		var stmt []string
		for ; i < len(lines) && lines[i] != ""; i++ {
			stmt = append(stmt, lines[i])
		}
		msg.Statement = strings.Join(stmt, "\n")
		if i >= len(lines) || lines[i] != "" {
			return nil, ErrMalformedMessage
		}
		i++
	}

	fields := []struct {
		prefix string
		dst    *string
	}{
		{"URI: ", &msg.URI},
		{"Version: ", &msg.Version},
	}
	for _, f := range fields {
		if i >= len(lines) {
			return nil, ErrMalformedMessage
		}
		val, ok := strings.CutPrefix(lines[i], f.prefix)
		if !ok || val == "" {
			return nil, ErrMalformedMessage
		}
		*f.dst = val
		i++
	}
	if msg.Version != Version {
		return nil, ErrMalformedMessage
	}

	if i >= len(lines) {
		return nil, ErrMalformedMessage
	}
	chainStr, ok := strings.CutPrefix(lines[i], "Chain ID: ")
	if !ok {
		return nil, ErrMalformedMessage
	}
	chainID, err := strconv.Atoi(chainStr)
	if err != nil || chainID <= 0 {
		return nil, ErrMalformedMessage
	}
	msg.ChainID = chainID
	i++

	tail := []struct {
		prefix string
		dst    *string
	}{
		{"Nonce: ", &msg.Nonce},
		{"Issued At: ", &msg.IssuedAt},
	}
	for _, f := range tail {
		if i >= len(lines) {
			return nil, ErrMalformedMessage
		}
		val, ok := strings.CutPrefix(lines[i], f.prefix)
		if !ok || val == "" {
			return nil, ErrMalformedMessage
		}
		*f.dst = val
		i++
	}
	if i != len(lines) {
		return nil, ErrMalformedMessage
	}
	if _, err := time.Parse(time.RFC3339, msg.IssuedAt); err != nil {
		return nil, ErrMalformedMessage
	}

	return msg, nil
}

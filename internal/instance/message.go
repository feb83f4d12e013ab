package instance

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrChannelUnavailable = errors.New("instance channel unavailable")
	ErrMalformedMessage   = errors.New("malformed channel message")
)

// Kind is one entry of the closed channel vocabulary.
type Kind int

const (
	KindQuit Kind = iota
	KindExit
	KindShow
	KindHide
	KindIdentity
)

const identityPrefix = "PID: "

func (k Kind) String() string {
	switch k {
	case KindQuit:
		return "quit"
	case KindExit:
		return "exit"
	case KindShow:
		return "show"
	case KindHide:
		return "hide"
	case KindIdentity:
		return "identity"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Message struct {
	Kind Kind
	// Identity holds the full "PID: <pid>" line for KindIdentity.
	Identity string
}

// Identity returns the announcement string for a process id.
func Identity(pid int) string {
	return identityPrefix + strconv.Itoa(pid)
}

// OwnIdentity is the announcement string of the calling process.
func OwnIdentity() string {
	return Identity(os.Getpid())
}

// ParseMessage classifies a single line read from the channel. The trailing
// line terminator is optional.
func ParseMessage(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")

	switch line {
	case "quit":
		return Message{Kind: KindQuit}, nil
	case "exit":
		return Message{Kind: KindExit}, nil
	case "show":
		return Message{Kind: KindShow}, nil
	case "hide":
		return Message{Kind: KindHide}, nil
	}

	if pid, ok := strings.CutPrefix(line, identityPrefix); ok {
		if _, err := strconv.Atoi(pid); err == nil {
			return Message{Kind: KindIdentity, Identity: line}, nil
		}
	}

	return Message{}, fmt.Errorf("%w: %q", ErrMalformedMessage, line)
}

// Encode renders the wire form of a message, without the line terminator.
func (m Message) Encode() string {
	if m.Kind == KindIdentity {
		return m.Identity
	}
	return m.Kind.String()
}

package protocol

import "fmt"

// Kind is the closed set of message variants in the room log.
type Kind int

const (
	KindText Kind = iota
	KindSystem
	KindRobot
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindSystem:
		return "system"
	case KindRobot:
		return "robot"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// EnvelopeType is the wire tag used when a message of this kind is broadcast live.
func (k Kind) EnvelopeType() string {
	switch k {
	case KindText:
		return TYPE_CHAT_MESSAGE
	case KindSystem:
		return TYPE_SYSTEM
	case KindRobot:
		return TYPE_ROBOT
	}
	panic(fmt.Sprintf("protocol: unknown kind %d", int(k)))
}

// Code is the numeric type code handed to the persistence collaborator.
func (k Kind) Code() int {
	switch k {
	case KindText:
		return 1
	case KindSystem:
		return 2
	case KindRobot:
		return 3
	}
	return 0
}

func KindFromCode(code int) (Kind, error) {
	switch code {
	case 1:
		return KindText, nil
	case 2:
		return KindSystem, nil
	case 3:
		return KindRobot, nil
	}
	return 0, fmt.Errorf("unknown message type code %d", code)
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "text":
		return KindText, nil
	case "system":
		return KindSystem, nil
	case "robot":
		return KindRobot, nil
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

// KindOfEnvelope maps a live envelope tag back to the kind of message it carries.
// Topic announcements are system messages.
func KindOfEnvelope(envelopeType string) (Kind, bool) {
	switch envelopeType {
	case TYPE_CHAT_MESSAGE:
		return KindText, true
	case TYPE_SYSTEM, TYPE_TOPIC_CHANGE:
		return KindSystem, true
	case TYPE_ROBOT:
		return KindRobot, true
	}
	return 0, false
}

func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindText, KindSystem, KindRobot:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("unknown message kind %d", int(k))
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

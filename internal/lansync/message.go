package lansync

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/bankero/internal/ledger"
)

// MessageType is the "type" tag carried by every wire record.
type MessageType string

const (
	TypeHello     MessageType = "hello"
	TypeHelloAck  MessageType = "hello_ack"
	TypePushBegin MessageType = "push_begin"
	TypeEvent     MessageType = "event"
	TypeRate      MessageType = "rate"
	TypePushEnd   MessageType = "push_end"
	TypePullBegin MessageType = "pull_begin"
	TypePullEnd   MessageType = "pull_end"
	TypeSummary   MessageType = "summary"
	TypeError     MessageType = "error"
)

// Error codes sent alongside an error message.
const (
	CodeRejected          = "rejected"
	CodeWorkspaceMismatch = "workspace_mismatch"
	CodeProtocol          = "protocol"
)

// Message is one record of the sync protocol. The set of implementations
// is closed: Hello, HelloAck, PushBegin, EventRecord, RateRecord, PushEnd,
// PullBegin, PullEnd, Summary and ErrorMessage.
type Message interface {
	Type() MessageType
}

// Hello opens a session.
type Hello struct {
	Workspace  string    `json:"workspace"`
	DeviceID   uuid.UUID `json:"device_id"`
	DeviceName string    `json:"device_name"`
	UserHost   string    `json:"user_host"`
	Version    string    `json:"version"`
}

// HelloAck accepts a session.
type HelloAck struct {
	DeviceID   uuid.UUID `json:"device_id"`
	DeviceName string    `json:"device_name"`
	UserHost   string    `json:"user_host"`
	Version    string    `json:"version"`
}

// PushBegin announces how many records the initiator is about to send.
type PushBegin struct {
	Events int `json:"events"`
	Rates  int `json:"rates"`
}

// EventRecord carries one ledger event.
type EventRecord struct {
	ledger.Event
}

// RateRecord carries one rate fact.
type RateRecord struct {
	ledger.RateFact
}

// PushEnd closes the push phase.
type PushEnd struct{}

// PullBegin announces how many records the responder is about to send.
type PullBegin struct {
	Events int `json:"events"`
	Rates  int `json:"rates"`
}

// PullEnd closes the pull phase.
type PullEnd struct{}

// Summary reports what the responder imported from the push.
type Summary struct {
	ImportedEvents int `json:"imported_events"`
	ImportedRates  int `json:"imported_rates"`
}

// ErrorMessage aborts a session.
type ErrorMessage struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (Hello) Type() MessageType        { return TypeHello }
func (HelloAck) Type() MessageType     { return TypeHelloAck }
func (PushBegin) Type() MessageType    { return TypePushBegin }
func (EventRecord) Type() MessageType  { return TypeEvent }
func (RateRecord) Type() MessageType   { return TypeRate }
func (PushEnd) Type() MessageType      { return TypePushEnd }
func (PullBegin) Type() MessageType    { return TypePullBegin }
func (PullEnd) Type() MessageType      { return TypePullEnd }
func (Summary) Type() MessageType      { return TypeSummary }
func (ErrorMessage) Type() MessageType { return TypeError }

// HelloFrom builds a Hello announcing id in workspace.
func HelloFrom(workspace string, id ledger.Identity) Hello {
	return Hello{
		Workspace:  workspace,
		DeviceID:   id.DeviceID,
		DeviceName: id.DeviceName,
		UserHost:   id.UserHost,
		Version:    id.Version,
	}
}

// Identity returns the announced identity.
func (h Hello) Identity() ledger.Identity {
	return ledger.Identity{DeviceID: h.DeviceID, DeviceName: h.DeviceName, UserHost: h.UserHost, Version: h.Version}
}

// AckFrom builds a HelloAck announcing id.
func AckFrom(id ledger.Identity) HelloAck {
	return HelloAck{DeviceID: id.DeviceID, DeviceName: id.DeviceName, UserHost: id.UserHost, Version: id.Version}
}

// Identity returns the announced identity.
func (a HelloAck) Identity() ledger.Identity {
	return ledger.Identity{DeviceID: a.DeviceID, DeviceName: a.DeviceName, UserHost: a.UserHost, Version: a.Version}
}

// Encode renders m as a single JSON object with its "type" tag first and
// no trailing newline.
func Encode(m Message) ([]byte, error) {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
	}
	fields := bytes.TrimSpace(body.Bytes())
	if len(fields) < 2 || fields[0] != '{' {
		return nil, fmt.Errorf("encode %s: not an object", m.Type())
	}

	var out bytes.Buffer
	out.WriteString(`{"type":"`)
	out.WriteString(string(m.Type()))
	out.WriteByte('"')
	if inner := fields[1 : len(fields)-1]; len(inner) > 0 {
		out.WriteByte(',')
		out.Write(inner)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

// Decode parses one record. Unknown types and malformed records are
// protocol errors.
func Decode(line []byte) (Message, error) {
	var tag struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(line, &tag); err != nil {
		return nil, ledger.NewProtocolError("decode message", "failed to parse sync message", err)
	}

	switch tag.Type {
	case TypeHello:
		return decodeMessage[Hello](line)
	case TypeHelloAck:
		return decodeMessage[HelloAck](line)
	case TypePushBegin:
		return decodeMessage[PushBegin](line)
	case TypeEvent:
		rec, err := decodeAs[EventRecord](line)
		if err != nil {
			return nil, err
		}
		if err := rec.Validate(); err != nil {
			return nil, ledger.NewProtocolError("decode message", "invalid event record", err)
		}
		return rec, nil
	case TypeRate:
		rec, err := decodeAs[RateRecord](line)
		if err != nil {
			return nil, err
		}
		if err := rec.Validate(); err != nil {
			return nil, ledger.NewProtocolError("decode message", "invalid rate record", err)
		}
		return rec, nil
	case TypePushEnd:
		return PushEnd{}, nil
	case TypePullBegin:
		return decodeMessage[PullBegin](line)
	case TypePullEnd:
		return PullEnd{}, nil
	case TypeSummary:
		return decodeMessage[Summary](line)
	case TypeError:
		return decodeMessage[ErrorMessage](line)
	case "":
		return nil, ledger.NewProtocolError("decode message", "sync message has no type", nil)
	default:
		return nil, ledger.NewProtocolError("decode message",
			fmt.Sprintf("unknown sync message type %q", tag.Type), nil)
	}
}

func decodeAs[T Message](line []byte) (T, error) {
	var v T
	if err := json.Unmarshal(line, &v); err != nil {
		return v, ledger.NewProtocolError("decode message",
			fmt.Sprintf("failed to parse %s message", v.Type()), err)
	}
	return v, nil
}

func decodeMessage[T Message](line []byte) (Message, error) {
	v, err := decodeAs[T](line)
	if err != nil {
		return nil, err
	}
	return v, nil
}

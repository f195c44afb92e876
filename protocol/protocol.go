// Package protocol defines the binary messages exchanged between the editor
// client and the daemon over a persistent websocket connection, one message
// per binary frame. Messages are CBOR-encoded; encode and decode are mutual
// inverses for every constructible message.
package protocol

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. The same logical
// message always produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// Correlation ids (uuid.UUID) serialize as CBOR text strings via
	// MarshalText rather than as opaque byte arrays.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Mirrors the TextMarshaler setting above for round-trip correctness.
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

// ErrMalformed wraps any decode failure: undecodable bytes, trailing bytes
// after the message boundary, unknown command/response tags, or a message
// missing a field its tag requires.
var ErrMalformed = errors.New("malformed message")

type CommandType string

const (
	CmdOpenProject    CommandType = "open_project"
	CmdReadSettings   CommandType = "read_settings"
	CmdUpdateSettings CommandType = "update_settings"
	CmdRun            CommandType = "run"
	CmdReadFile       CommandType = "read_file"
	CmdReadDir        CommandType = "read_dir"
	CmdWriteFile      CommandType = "write_file"
	CmdDelete         CommandType = "delete"
	CmdRename         CommandType = "rename"
	CmdStopRunning    CommandType = "stop_running"
)

// Command is the closed set of operations a client can request. The Type tag
// selects the variant; only the fields that variant names are meaningful.
type Command struct {
	Type CommandType `cbor:"type"`

	// Run fields
	CommandLine string `cbor:"command,omitempty"`

	// File operation fields
	Path     string `cbor:"path,omitempty"`
	Contents string `cbor:"contents,omitempty"`
	From     string `cbor:"from,omitempty"`
	To       string `cbor:"to,omitempty"`

	// UpdateSettings fields
	Settings string `cbor:"settings,omitempty"`
}

func (c Command) validate() error {
	switch c.Type {
	case CmdOpenProject, CmdReadSettings, CmdUpdateSettings, CmdStopRunning:
		return nil
	case CmdRun:
		if c.CommandLine == "" {
			return fmt.Errorf("%w: run without command", ErrMalformed)
		}
	case CmdReadFile, CmdReadDir, CmdDelete:
		if c.Path == "" {
			return fmt.Errorf("%w: %s without path", ErrMalformed, c.Type)
		}
	case CmdWriteFile:
		if c.Path == "" {
			return fmt.Errorf("%w: write_file without path", ErrMalformed)
		}
	case CmdRename:
		if c.From == "" || c.To == "" {
			return fmt.Errorf("%w: rename without from/to", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown command type %q", ErrMalformed, c.Type)
	}
	return nil
}

type ResponseType string

const (
	RespProjectContents ResponseType = "project_contents"
	RespProjectSettings ResponseType = "project_settings"
	RespFileContents    ResponseType = "file_contents"
	RespDirContents     ResponseType = "dir_contents"
	RespOutput          ResponseType = "output"
	RespSuccess         ResponseType = "success"
	RespError           ResponseType = "error"
)

// Response is the closed set of replies the daemon sends back, tagged the
// same way as Command.
type Response struct {
	Type ResponseType `cbor:"type"`

	// ProjectContents fields. Root is the resolved project directory inside
	// the sandbox; Entries are its immediate children, directories carrying
	// a trailing slash. Slice fields are encoded even when empty so that an
	// empty listing survives a round trip as distinct from an absent one.
	Root    string   `cbor:"root,omitempty"`
	Entries []string `cbor:"entries"`

	// ProjectContents + ProjectSettings fields
	Settings string `cbor:"settings,omitempty"`

	// FileContents fields
	Contents string `cbor:"contents,omitempty"`

	// DirContents fields
	Paths []string `cbor:"paths"`

	// Output fields
	Output string `cbor:"output,omitempty"`

	// Error fields
	Message string `cbor:"message,omitempty"`
}

func (r Response) validate() error {
	switch r.Type {
	case RespProjectContents, RespProjectSettings, RespFileContents,
		RespDirContents, RespOutput, RespSuccess:
		return nil
	case RespError:
		if r.Message == "" {
			return fmt.Errorf("%w: error response without message", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown response type %q", ErrMalformed, r.Type)
	}
	return nil
}

// ClientMessage is one inbound frame: a correlation id chosen by the client
// and the command to execute.
type ClientMessage struct {
	ID  uuid.UUID `cbor:"id"`
	Cmd Command   `cbor:"cmd"`
}

// NewClientMessage wraps cmd with a fresh random correlation id.
func NewClientMessage(cmd Command) ClientMessage {
	return ClientMessage{ID: uuid.New(), Cmd: cmd}
}

// ServerMessage is one outbound frame. ID echoes the ClientMessage that
// triggered it, verbatim.
type ServerMessage struct {
	ID   uuid.UUID `cbor:"id"`
	Resp Response  `cbor:"resp"`
}

func (m ClientMessage) Encode() ([]byte, error) {
	if err := m.Cmd.validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(m)
}

func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := decMode.Unmarshal(data, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Cmd.validate(); err != nil {
		return ClientMessage{}, err
	}
	return m, nil
}

func (m ServerMessage) Encode() ([]byte, error) {
	if err := m.Resp.validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(m)
}

func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := decMode.Unmarshal(data, &m); err != nil {
		return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := m.Resp.validate(); err != nil {
		return ServerMessage{}, err
	}
	return m, nil
}

// ErrorResponse builds the Error variant carrying msg.
func ErrorResponse(msg string) Response {
	return Response{Type: RespError, Message: msg}
}

// SuccessResponse builds the bare Success variant.
func SuccessResponse() Response {
	return Response{Type: RespSuccess}
}

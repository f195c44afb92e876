package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessageRoundTrip(t *testing.T) {
	commands := []Command{
		{Type: CmdOpenProject},
		{Type: CmdReadSettings},
		{Type: CmdUpdateSettings, Settings: "run_command = \"python main.py\"\n"},
		{Type: CmdRun, CommandLine: "python main.py"},
		{Type: CmdReadFile, Path: "/home/workspace/app/main.py"},
		{Type: CmdReadDir, Path: "/home/workspace/app"},
		{Type: CmdWriteFile, Path: "/home/workspace/app/a.txt", Contents: "hello"},
		{Type: CmdWriteFile, Path: "/home/workspace/app/empty.txt"},
		{Type: CmdDelete, Path: "/home/workspace/app/old.py"},
		{Type: CmdRename, From: "/home/workspace/app/a.txt", To: "/home/workspace/app/b.txt"},
		{Type: CmdStopRunning},
	}

	for _, cmd := range commands {
		t.Run(string(cmd.Type), func(t *testing.T) {
			msg := NewClientMessage(cmd)

			data, err := msg.Encode()
			require.NoError(t, err)

			decoded, err := DecodeClientMessage(data)
			require.NoError(t, err)
			assert.Equal(t, msg, decoded)
		})
	}
}

func TestServerMessageRoundTrip(t *testing.T) {
	responses := []Response{
		{Type: RespProjectContents, Root: "/home/workspace/app", Entries: []string{"main.py", "lib/", ".ide/"}, Settings: "run_command = \"python main.py\"\n"},
		{Type: RespProjectSettings, Settings: "run_command = \"cargo run\"\n"},
		{Type: RespFileContents, Contents: "print('hi')\n"},
		{Type: RespFileContents},
		{Type: RespDirContents, Paths: []string{"a.txt", "b.txt", "sub/"}},
		{Type: RespDirContents, Paths: []string{}},
		{Type: RespDirContents},
		{Type: RespProjectContents, Root: "/home/workspace/app", Entries: []string{}},
		{Type: RespOutput, Output: "hi\n"},
		{Type: RespSuccess},
		{Type: RespError, Message: "no such file"},
	}

	for _, resp := range responses {
		t.Run(string(resp.Type), func(t *testing.T) {
			msg := ServerMessage{ID: uuid.New(), Resp: resp}

			data, err := msg.Encode()
			require.NoError(t, err)

			decoded, err := DecodeServerMessage(data)
			require.NoError(t, err)
			assert.Equal(t, msg, decoded)
		})
	}
}

func TestCorrelationIDEchoedVerbatim(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	msg := ClientMessage{ID: id, Cmd: Command{Type: CmdOpenProject}}

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeClientMessage(data)
	require.NoError(t, err)
	assert.Equal(t, id, decoded.ID)
}

func TestEncodingIsDeterministic(t *testing.T) {
	msg := ClientMessage{
		ID:  uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Cmd: Command{Type: CmdWriteFile, Path: "/home/workspace/a", Contents: "x"},
	}

	first, err := msg.Encode()
	require.NoError(t, err)
	second, err := msg.Encode()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeClientMessage([]byte("not cbor at all"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeServerMessage([]byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	msg := NewClientMessage(Command{Type: CmdOpenProject})
	data, err := msg.Encode()
	require.NoError(t, err)

	_, err = DecodeClientMessage(append(data, 0x00))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsUnknownCommandType(t *testing.T) {
	msg := ClientMessage{ID: uuid.New(), Cmd: Command{Type: "format_disk"}}
	data, err := encMode.Marshal(msg)
	require.NoError(t, err)

	_, err = DecodeClientMessage(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsMissingRequiredFields(t *testing.T) {
	cases := []Command{
		{Type: CmdRun},
		{Type: CmdReadFile},
		{Type: CmdReadDir},
		{Type: CmdWriteFile},
		{Type: CmdDelete},
		{Type: CmdRename, From: "/a"},
		{Type: CmdRename, To: "/b"},
	}

	for _, cmd := range cases {
		data, err := encMode.Marshal(ClientMessage{ID: uuid.New(), Cmd: cmd})
		require.NoError(t, err)

		_, err = DecodeClientMessage(data)
		assert.ErrorIs(t, err, ErrMalformed, "command type %s", cmd.Type)
	}
}

func TestEncodeRejectsInvalidMessages(t *testing.T) {
	_, err := ClientMessage{ID: uuid.New(), Cmd: Command{Type: "bogus"}}.Encode()
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ServerMessage{ID: uuid.New(), Resp: Response{Type: RespError}}.Encode()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestErrorResponseHelper(t *testing.T) {
	resp := ErrorResponse("boom")
	assert.Equal(t, RespError, resp.Type)
	assert.Equal(t, "boom", resp.Message)

	assert.Equal(t, RespSuccess, SuccessResponse().Type)
}

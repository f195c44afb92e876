// Package editor implements the per-connection protocol handler: it decodes
// commands arriving on a websocket, executes them inside the session's
// sandbox container, and streams back correlated responses.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/p-arndt/werkbank/internal/docker"
	"github.com/p-arndt/werkbank/internal/settings"
	"github.com/p-arndt/werkbank/protocol"
)

// Execer is the one primitive the handler talks to the sandbox with.
type Execer interface {
	Exec(ctx context.Context, containerID string, spec docker.ExecSpec) (*docker.ExecResult, error)
}

// SettingsStore persists per-user editor settings outside the sandbox.
type SettingsStore interface {
	Get(userID string) (string, error)
	Set(userID, text string) error
}

// Conn is the subset of a websocket connection the frame loop needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// projectMetaDir is the hidden directory carrying project metadata, surfaced
// in the project tree when present.
const projectMetaDir = ".ide"

// Handler owns one connection bound to one container. Not safe for use from
// multiple goroutines: the frame loop is strictly serial.
type Handler struct {
	engine   Execer
	settings SettingsStore
	logger   *slog.Logger

	user          string
	containerID   string
	workspacePath string
	execTimeout   time.Duration

	// Connection-scoped exec state, discarded when the connection closes.
	projectRoot string
	lastPID     int
}

func NewHandler(engine Execer, st SettingsStore, logger *slog.Logger, user, containerID, workspacePath string, execTimeout time.Duration) *Handler {
	return &Handler{
		engine:        engine,
		settings:      st,
		logger:        logger.With("session_user", user, "container_id", containerID),
		user:          user,
		containerID:   containerID,
		workspacePath: workspacePath,
		execTimeout:   execTimeout,
	}
}

// Serve runs the frame loop: one ClientMessage per inbound binary frame, one
// ServerMessage per outbound frame, until the transport closes or a protocol
// error occurs. Command failures become Error responses and never end the
// loop; undecodable frames do, since they carry no id to answer on.
func (h *Handler) Serve(ctx context.Context, conn Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if messageType != websocket.BinaryMessage {
			return fmt.Errorf("unexpected message type %d", messageType)
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			return err
		}

		resp := h.dispatch(ctx, msg.Cmd)
		out, err := protocol.ServerMessage{ID: msg.ID, Resp: resp}.Encode()
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			return err
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, cmd protocol.Command) protocol.Response {
	resp, err := h.execute(ctx, cmd)
	if err != nil {
		h.logger.Warn("command failed", "command", cmd.Type, "error", err)
		return protocol.ErrorResponse(err.Error())
	}
	return resp
}

func (h *Handler) execute(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	switch cmd.Type {
	case protocol.CmdOpenProject:
		return h.openProject(ctx)
	case protocol.CmdReadSettings:
		return h.readProjectSettings(ctx)
	case protocol.CmdUpdateSettings:
		if err := h.settings.Set(h.user, cmd.Settings); err != nil {
			return protocol.Response{}, fmt.Errorf("store settings: %w", err)
		}
		return protocol.SuccessResponse(), nil
	case protocol.CmdRun:
		return h.run(ctx, cmd.CommandLine)
	case protocol.CmdReadFile:
		return h.readFile(ctx, cmd.Path)
	case protocol.CmdReadDir:
		return h.readDir(ctx, cmd.Path)
	case protocol.CmdWriteFile:
		return h.writeFile(ctx, cmd.Path, cmd.Contents)
	case protocol.CmdDelete:
		return h.delete(ctx, cmd.Path)
	case protocol.CmdRename:
		return h.rename(ctx, cmd.From, cmd.To)
	case protocol.CmdStopRunning:
		return h.stopRunning(ctx)
	}
	return protocol.Response{}, fmt.Errorf("not supported: %s", cmd.Type)
}

// openProject locates the single top-level project directory inside the
// workspace mount, caches it as the project root, and returns its immediate
// children together with the user's persisted editor settings.
func (h *Handler) openProject(ctx context.Context) (protocol.Response, error) {
	res, err := h.execOK(ctx, docker.ExecSpec{Cmd: []string{"ls", "-p", h.workspacePath}})
	if err != nil {
		return protocol.Response{}, err
	}

	var dirs []string
	for _, entry := range splitLines(res.Output) {
		if strings.HasSuffix(entry, "/") {
			dirs = append(dirs, entry)
		}
	}
	if len(dirs) != 1 {
		return protocol.Response{}, fmt.Errorf("expected one project directory in %s, found %d", h.workspacePath, len(dirs))
	}

	root := path.Join(h.workspacePath, strings.TrimSuffix(dirs[0], "/"))

	res, err = h.execOK(ctx, docker.ExecSpec{Cmd: []string{"ls", "-p", root}})
	if err != nil {
		return protocol.Response{}, err
	}
	entries := splitLines(res.Output)

	// ls skips hidden entries; the metadata directory is surfaced explicitly.
	if meta, err := h.exec(ctx, docker.ExecSpec{
		Cmd: []string{"test", "-d", root + "/" + projectMetaDir},
	}); err == nil && meta.ExitCode == 0 {
		entries = append(entries, projectMetaDir+"/")
	}

	h.projectRoot = root

	text, err := h.settings.Get(h.user)
	if err != nil && !errors.Is(err, settings.ErrNotFound) {
		return protocol.Response{}, fmt.Errorf("load settings: %w", err)
	}

	return protocol.Response{
		Type:     protocol.RespProjectContents,
		Root:     root,
		Entries:  entries,
		Settings: text,
	}, nil
}

func (h *Handler) readProjectSettings(ctx context.Context) (protocol.Response, error) {
	root, err := h.requireProjectRoot()
	if err != nil {
		return protocol.Response{}, err
	}

	res, err := h.execOK(ctx, docker.ExecSpec{
		Cmd: []string{"cat", root + "/" + projectMetaDir + "/project.toml"},
	})
	if err != nil {
		return protocol.Response{}, err
	}

	return protocol.Response{Type: protocol.RespProjectSettings, Settings: res.Output}, nil
}

// run executes a command line with the project root as working directory and
// remembers the spawned pid. A nonzero exit is still output, not an error:
// compile failures belong in the run panel.
func (h *Handler) run(ctx context.Context, commandLine string) (protocol.Response, error) {
	root, err := h.requireProjectRoot()
	if err != nil {
		return protocol.Response{}, err
	}

	res, err := h.exec(ctx, docker.ExecSpec{
		Cmd:     []string{"sh", "-c", commandLine},
		WorkDir: root,
	})
	if err != nil {
		return protocol.Response{}, fmt.Errorf("sandbox exec: %w", err)
	}
	h.lastPID = res.PID

	return protocol.Response{Type: protocol.RespOutput, Output: res.Output}, nil
}

func (h *Handler) readFile(ctx context.Context, p string) (protocol.Response, error) {
	res, err := h.execOK(ctx, docker.ExecSpec{Cmd: []string{"cat", h.resolvePath(p)}})
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Response{Type: protocol.RespFileContents, Contents: res.Output}, nil
}

func (h *Handler) readDir(ctx context.Context, p string) (protocol.Response, error) {
	res, err := h.execOK(ctx, docker.ExecSpec{Cmd: []string{"ls", "-p", h.resolvePath(p)}})
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.Response{Type: protocol.RespDirContents, Paths: splitLines(res.Output)}, nil
}

// writeFile streams the contents to `cat` redirected into the target path
// and closes the input stream to signal end-of-input.
func (h *Handler) writeFile(ctx context.Context, p, contents string) (protocol.Response, error) {
	_, err := h.execOK(ctx, docker.ExecSpec{
		Cmd:   []string{"sh", "-c", "cat > " + shellQuote(h.resolvePath(p))},
		Stdin: &contents,
	})
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.SuccessResponse(), nil
}

func (h *Handler) delete(ctx context.Context, p string) (protocol.Response, error) {
	if _, err := h.execOK(ctx, docker.ExecSpec{Cmd: []string{"rm", "-rf", h.resolvePath(p)}}); err != nil {
		return protocol.Response{}, err
	}
	return protocol.SuccessResponse(), nil
}

func (h *Handler) rename(ctx context.Context, from, to string) (protocol.Response, error) {
	if _, err := h.execOK(ctx, docker.ExecSpec{Cmd: []string{"mv", h.resolvePath(from), h.resolvePath(to)}}); err != nil {
		return protocol.Response{}, err
	}
	return protocol.SuccessResponse(), nil
}

func (h *Handler) stopRunning(ctx context.Context) (protocol.Response, error) {
	if h.lastPID == 0 {
		return protocol.Response{}, errors.New("no process has been started")
	}
	if _, err := h.execOK(ctx, docker.ExecSpec{Cmd: []string{"kill", strconv.Itoa(h.lastPID)}}); err != nil {
		return protocol.Response{}, err
	}
	return protocol.SuccessResponse(), nil
}

// exec runs one process inside the session container, bounded by the
// configured timeout so a hung command cannot pin the frame loop forever.
func (h *Handler) exec(ctx context.Context, spec docker.ExecSpec) (*docker.ExecResult, error) {
	if h.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.execTimeout)
		defer cancel()
	}
	return h.engine.Exec(ctx, h.containerID, spec)
}

// execOK runs one process and treats a nonzero exit as a command failure
// carrying the process output as the message.
func (h *Handler) execOK(ctx context.Context, spec docker.ExecSpec) (*docker.ExecResult, error) {
	res, err := h.exec(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("sandbox exec: %w", err)
	}
	if res.ExitCode != 0 {
		msg := strings.TrimSpace(res.Output)
		if msg == "" {
			msg = fmt.Sprintf("%s exited with status %d", spec.Cmd[0], res.ExitCode)
		}
		return nil, errors.New(msg)
	}
	return res, nil
}

func (h *Handler) requireProjectRoot() (string, error) {
	if h.projectRoot == "" {
		return "", errors.New("no project opened on this connection")
	}
	return h.projectRoot, nil
}

// resolvePath anchors relative paths at the project root; absolute paths
// pass through untouched.
func (h *Handler) resolvePath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	if h.projectRoot == "" {
		return path.Join(h.workspacePath, p)
	}
	return path.Join(h.projectRoot, p)
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// shellQuote wraps s in single quotes for safe interpolation into sh -c.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

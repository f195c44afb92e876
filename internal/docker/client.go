// Package docker adapts the container engine API to the handful of calls the
// session manager and protocol handler need. It is the only place the engine
// client is touched.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"

	"github.com/p-arndt/werkbank/internal/config"
)

const labelPrefix = "werkbank."

type Client struct {
	docker *client.Client
	cfg    config.Sandbox
}

func New(cfg config.Sandbox) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{docker: cli, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.docker.Close()
}

// Ping verifies the Docker daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

// PullImage ensures the image is present on the host before a container is
// created from it.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	rc, err := c.docker.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("image pull: %w", err)
	}
	return nil
}

type CreateOpts struct {
	User  string
	Image string
}

// CreateContainer creates and starts a sandbox container: a fresh anonymous
// volume mounted at the workspace path, the configured low-privilege runtime
// class, tty enabled for the frontend terminal, auto-remove on stop.
func (c *Client) CreateContainer(ctx context.Context, opts CreateOpts) (string, error) {
	labels := map[string]string{
		labelPrefix + "user":    opts.User,
		labelPrefix + "managed": "true",
	}

	resources := container.Resources{
		NanoCPUs:  int64(c.cfg.CPULimit * 1e9),
		Memory:    int64(c.cfg.MemLimitMB) * 1024 * 1024,
		PidsLimit: int64Ptr(int64(c.cfg.PidsLimit)),
	}

	hostCfg := &container.HostConfig{
		Runtime:     c.cfg.Runtime,
		AutoRemove:  true,
		Resources:   resources,
		SecurityOpt: []string{"no-new-privileges"},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeVolume,
				Target: c.cfg.WorkspacePath,
			},
			{
				Type:   mount.TypeTmpfs,
				Target: "/tmp",
				TmpfsOptions: &mount.TmpfsOptions{
					SizeBytes: 256 * units.MiB,
				},
			},
		},
	}

	if c.cfg.NetworkMode == "none" {
		hostCfg.NetworkMode = "none"
	}

	containerCfg := &container.Config{
		Image:  opts.Image,
		Labels: labels,
		Tty:    true,
	}

	resp, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("container create: %w", err)
	}

	if err := c.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		c.docker.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
		return "", fmt.Errorf("container start: %w", err)
	}

	return resp.ID, nil
}

// StopContainer stops a sandbox container. With auto-remove enabled the
// engine deletes the container and its anonymous volume once stopped.
func (c *Client) StopContainer(ctx context.Context, containerID string) error {
	err := c.docker.ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("container stop: %w", err)
	}
	return nil
}

// UploadArchive extracts a tar archive into path inside the container.
func (c *Client) UploadArchive(ctx context.Context, containerID, path string, archive []byte) error {
	err := c.docker.CopyToContainer(ctx, containerID, path, bytes.NewReader(archive), container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}
	return nil
}

// ExecSpec describes one process to spawn inside a running container.
type ExecSpec struct {
	Cmd     []string
	WorkDir string
	// Stdin, when non-nil, is written to the process and the input stream is
	// closed; when nil stdin is not attached at all.
	Stdin *string
}

// ExecResult is the outcome of a completed exec instance.
type ExecResult struct {
	Output   string
	ExitCode int
	PID      int
}

// Exec runs one process inside the container and collects its combined
// output until it exits. This is the single primitive every protocol command
// is built on.
func (c *Client) Exec(ctx context.Context, containerID string, spec ExecSpec) (*ExecResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          spec.Cmd,
		WorkingDir:   spec.WorkDir,
		AttachStdin:  spec.Stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
	}

	execResp, err := c.docker.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, fmt.Errorf("exec create: %w", err)
	}

	attachResp, err := c.docker.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}
	defer attachResp.Close()

	// The process id exists as soon as the exec has started; grab it now so
	// it is known while the process is still running.
	pid := 0
	if inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID); err == nil {
		pid = inspect.Pid
	}

	if spec.Stdin != nil {
		if _, err := attachResp.Conn.Write([]byte(*spec.Stdin)); err != nil {
			return nil, fmt.Errorf("exec stdin: %w", err)
		}
		if err := attachResp.CloseWrite(); err != nil {
			return nil, fmt.Errorf("exec stdin close: %w", err)
		}
	}

	// Demultiplex Docker's stdout/stderr stream (8-byte headers) into one
	// combined buffer.
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, attachResp.Reader); err != nil {
		return nil, fmt.Errorf("exec read: %w", err)
	}

	inspect, err := c.docker.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect: %w", err)
	}
	if pid == 0 {
		pid = inspect.Pid
	}

	return &ExecResult{
		Output:   out.String(),
		ExitCode: inspect.ExitCode,
		PID:      pid,
	}, nil
}

// ContainerInfo holds basic info about a running sandbox container.
type ContainerInfo struct {
	ContainerID string
	User        string
	CreatedAt   time.Time
}

// ListSandboxContainers returns all containers carrying werkbank labels.
func (c *Client) ListSandboxContainers(ctx context.Context) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	f.Add("label", labelPrefix+"managed=true")

	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("container list: %w", err)
	}

	var result []ContainerInfo
	for _, ctr := range containers {
		user := ctr.Labels[labelPrefix+"user"]
		if user == "" {
			continue
		}
		result = append(result, ContainerInfo{
			ContainerID: ctr.ID,
			User:        user,
			CreatedAt:   time.Unix(ctr.Created, 0),
		})
	}
	return result, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cuemby/sahara/pkg/errors"
	"github.com/cuemby/sahara/pkg/images"
	"github.com/cuemby/sahara/pkg/log"
	"github.com/cuemby/sahara/pkg/security"
	"github.com/cuemby/sahara/pkg/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// SSHConnector opens SSH sessions using the cluster management key
type SSHConnector struct {
	User    string
	Port    int
	Timeout time.Duration
	// Images supplies the login user of the node group image. Optional.
	Images images.Lookup
}

// Connect dials the management address of instance
func (c *SSHConnector) Connect(ctx context.Context, cluster *types.Cluster, instance *types.Instance) (Remote, error) {
	signer, err := security.ParsePrivateKey(cluster.ManagementPrivateKey)
	if err != nil {
		return nil, err
	}

	user := c.loginUser(cluster, instance)
	host := instance.ManagementIP
	if host == "" {
		host = instance.InternalIP
	}
	addr := net.JoinHostPort(host, strconv.Itoa(c.port()))

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.Timeout,
	}

	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}

	return &sshRemote{
		host:   host,
		client: ssh.NewClient(sshConn, chans, reqs),
		logger: log.WithInstanceID(instance.InstanceID).With().Str("host", host).Logger(),
	}, nil
}

func (c *SSHConnector) port() int {
	if c.Port == 0 {
		return 22
	}
	return c.Port
}

func (c *SSHConnector) loginUser(cluster *types.Cluster, instance *types.Instance) string {
	if c.Images != nil {
		if ng := cluster.NodeGroup(instance.NodeGroupID); ng != nil {
			if img, err := images.NodeGroupImage(c.Images, cluster, ng); err == nil && img.Username != "" {
				return img.Username
			}
		}
	}
	return c.User
}

type sshRemote struct {
	host   string
	client *ssh.Client
	logger zerolog.Logger
}

func (r *sshRemote) Host() string { return r.host }

func (r *sshRemote) Close() error { return r.client.Close() }

func (r *sshRemote) ExecuteCommand(ctx context.Context, cmd string, opts ...Option) (int, string, error) {
	o := ResolveOptions(opts...)
	code, out, err := r.run(ctx, WrapCommand(cmd, o), nil, o.Timeout)
	if err != nil {
		return code, out, err
	}
	if code != 0 && o.RaiseWhenError {
		return code, out, errors.RemoteCommandFailed(r.host, cmd, code, out)
	}
	return code, out, nil
}

func (r *sshRemote) WriteFile(ctx context.Context, path string, data []byte, opts ...Option) error {
	o := ResolveOptions(opts...)
	cmd := "cat > " + Quote(path)
	if o.RunAsRoot {
		cmd = "sudo tee " + Quote(path) + " > /dev/null"
	}
	code, out, err := r.run(ctx, cmd, data, o.Timeout)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.RemoteCommandFailed(r.host, cmd, code, out)
	}
	return nil
}

func (r *sshRemote) ReadFile(ctx context.Context, path string, opts ...Option) ([]byte, error) {
	o := ResolveOptions(opts...)
	cmd := WrapCommand(fmt.Sprintf("test -e %[1]s || exit %[2]d; cat %[1]s", Quote(path), missingFileExit), o)
	code, out, err := r.run(ctx, cmd, nil, o.Timeout)
	if err != nil {
		return nil, err
	}
	if code == missingFileExit {
		return nil, errors.NotFound("file", path).WithDetail("host", r.host)
	}
	if code != 0 {
		return nil, errors.RemoteCommandFailed(r.host, cmd, code, out)
	}
	return []byte(out), nil
}

// missingFileExit is the exit status ReadFile uses for a path that does not
// exist. cat exits 1 for every failure, permission errors included.
const missingFileExit = 44

// run executes cmd in a fresh session, feeding stdin when given
func (r *sshRemote) run(ctx context.Context, cmd string, stdin []byte, timeout time.Duration) (int, string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session, err := r.client.NewSession()
	if err != nil {
		return -1, "", fmt.Errorf("failed to open session on %s: %w", r.host, err)
	}
	defer session.Close()

	var output bytes.Buffer
	session.Stdout = &output
	session.Stderr = &output
	if stdin != nil {
		session.Stdin = bytes.NewReader(stdin)
	}

	r.logger.Debug().Str("command", cmd).Msg("Executing remote command")

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		session.Close()
		return -1, "", errors.Timeout(cmd, ctx.Err())
	}

	if err == nil {
		return 0, output.String(), nil
	}
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitStatus(), output.String(), nil
	}
	return -1, output.String(), fmt.Errorf("command on %s failed: %w", r.host, err)
}

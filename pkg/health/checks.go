package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// CommandRunner runs a command on a remote host over SSH.
type CommandRunner interface {
	Run(ctx context.Context, addr, user string, privateKey []byte, command string, timeout time.Duration) (string, error)
}

// Dialer opens TCP connections.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// AuthError wraps failures to parse the key or authenticate.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "ssh authentication: " + e.Err.Error() }

func (e *AuthError) Unwrap() error { return e.Err }

// CheckSSH logs in as the admin user and runs `true`.
func (c *Checker) CheckSSH(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "SSH", CheckedAt: start}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.sshPort))

	_, err := c.runner.Run(ctx, addr, c.user, []byte(c.privateKey.Reveal()), "true", c.timeout)
	result.Duration = time.Since(start)

	switch {
	case err == nil:
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%s@%s accepted the key", c.user, addr)
	case isAuthError(err):
		result.Status = StatusCritical
		result.Message = fmt.Sprintf("%s@%s rejected the key", c.user, addr)
		result.Details = []string{err.Error()}
		result.Remediation = "Check that privateKeyPath matches the key pair registered for the stack"
	case isExitError(err):
		result.Status = StatusWarning
		result.Message = fmt.Sprintf("logged in to %s but the command failed", addr)
		result.Details = []string{err.Error()}
	default:
		result.Status = StatusCritical
		result.Message = fmt.Sprintf("cannot reach %s", addr)
		result.Details = []string{err.Error()}
		result.Remediation = "Check that the instance is running and the security group allows port 22"
	}
	return result
}

// CheckGamePort opens a TCP connection to the game port.
func (c *Checker) CheckGamePort(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "GamePort", CheckedAt: start}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.gamePort))

	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(dialCtx, "tcp", addr)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusCritical
		result.Message = fmt.Sprintf("%s is not accepting connections", addr)
		result.Details = []string{err.Error()}
		result.Remediation = "Check the playbook run output and the server service on the instance"
		return result
	}
	_ = conn.Close()

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("%s is accepting connections", addr)
	return result
}

func isAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func isExitError(err error) bool {
	var exitErr *ssh.ExitError
	return errors.As(err, &exitErr)
}

type sshRunner struct{}

func (r *sshRunner) Run(ctx context.Context, addr, user string, privateKey []byte, command string, timeout time.Duration) (string, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return "", &AuthError{Err: fmt.Errorf("failed to parse private key: %w", err)}
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to dial ssh: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return "", &AuthError{Err: err}
		}
		return "", fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return string(output), fmt.Errorf("failed to execute command: %w", err)
	}
	return string(output), nil
}

type netDialer struct{}

func (d *netDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

package probe

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHDialer opens real SSH connections using a launch key pair. Host keys are
// not verified: the machines are short-lived and addressed by IP from the
// provider's own inventory.
type SSHDialer struct {
	user    string
	timeout time.Duration
}

// NewSSHDialer builds a dialer logging in as user with the given connect
// timeout.
func NewSSHDialer(user string, timeout time.Duration) *SSHDialer {
	if user == "" {
		user = "ec2-user"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SSHDialer{user: user, timeout: timeout}
}

// Dial connects to addr on port 22 and authenticates with the PEM-encoded
// private key.
func (d *SSHDialer) Dial(addr string, privateKeyPEM []byte) (Session, error) {
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	cfg := &ssh.ClientConfig{
		User:            d.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.timeout,
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(addr, "22"), cfg)
	if err != nil {
		return nil, err
	}
	return &sshSession{client: client}, nil
}

// sshSession wraps one SSH client; each Run gets a fresh exec channel.
type sshSession struct {
	client *ssh.Client
}

func (s *sshSession) Run(cmd string) (string, string, int, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return "", "", 0, err
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr
	err = sess.Run(cmd)

	// A non-zero exit means the command ran; only session and transport
	// failures surface as errors.
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitStatus(), nil
	}
	return stdout.String(), stderr.String(), 0, err
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

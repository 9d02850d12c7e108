package transport

import (
	"io"

	"golang.org/x/crypto/ssh"
)

// sshConn adapts an ssh.Session's stdin/stdout pipes to the Conn
// interface. Grounded on the teacher's SSHSession (zmodem/ssh.go, now
// deleted) which wired the same three pipes into its blocking session;
// here they're wired into Pump instead.
type sshConn struct {
	stdin  io.WriteCloser
	stdout io.Reader
	sess   *ssh.Session
}

// DialSSHCommand opens an SSH session on client, starts command (typically
// the remote sz invocation), and returns a Conn reading/writing its
// stdout/stdin.
func DialSSHCommand(client *ssh.Client, command string) (Conn, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.Start(command); err != nil {
		sess.Close()
		return nil, err
	}
	return &sshConn{stdin: stdin, stdout: stdout, sess: sess}, nil
}

func (c *sshConn) Read(p []byte) (int, error)  { return c.stdout.Read(p) }
func (c *sshConn) Write(p []byte) (int, error) { return c.stdin.Write(p) }

func (c *sshConn) Close() error {
	c.stdin.Close()
	return c.sess.Close()
}

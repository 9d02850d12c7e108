package transport

import "net"

// DialTCP connects to addr and returns a Conn suitable for Pump. Grounded
// on the teacher's net.Conn usage in cmd/grz/main.go (now deleted).
func DialTCP(addr string) (Conn, error) {
	return net.Dial("tcp", addr)
}

// ListenTCP accepts a single inbound connection on addr and returns it as
// a Conn. zmrx's --listen mode is single-session by design (spec's
// Non-goals explicitly exclude multi-session management).
func ListenTCP(addr string) (Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Accept()
}

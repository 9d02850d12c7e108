package transport

import (
	"github.com/pkg/term"
)

// OpenSerial opens a serial device at the given baud rate in raw mode.
// Grounded on the corpus's use of github.com/pkg/term for line-discipline
// control (doismellburning-samoyed's kissserial_init, there driven through
// a CGo shim; here through the package's native Go API directly).
func OpenSerial(device string, baud int) (Conn, error) {
	t, err := term.Open(device, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, err
	}
	if err := t.SetReadTimeout(0); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

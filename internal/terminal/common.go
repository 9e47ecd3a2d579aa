package terminal

import (
	"errors"
	"fmt"
)

// ErrDriverIO classifies any filesystem/process/SSH failure raised by a
// Driver (spec.md §7 E.io).
var ErrDriverIO = errors.New("terminal driver io error")

// controlKeySequence translates the control-key names spec.md §4.2's
// send_control_key tool accepts (ctrl+c, ctrl+d, ctrl+z, q, space,
// enter) into the raw bytes to write.
func controlKeySequence(key string) ([]byte, error) {
	switch key {
	case "ctrl+c":
		return []byte{0x03}, nil
	case "ctrl+d":
		return []byte{0x04}, nil
	case "ctrl+z":
		return []byte{0x1a}, nil
	case "q":
		return []byte("q"), nil
	case "space":
		return []byte(" "), nil
	case "enter":
		return []byte("\n"), nil
	default:
		return nil, fmt.Errorf("%w: unknown control key %q", ErrDriverIO, key)
	}
}

package errors

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestProtocolError(t *testing.T) {
	tests := []struct {
		desc string
		err  error
		want string
	}{
		{desc: "formatted", err: ProtocolErrorf("unknown message type %d", 9), want: "unknown message type 9"},
		{desc: "wrapped", err: WrapProtocolError(io.ErrUnexpectedEOF, "step"), want: "step: unexpected EOF"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %q; want %q", tt.err.Error(), tt.want)
			}
			if !IsProtocolError(errors.Wrap(tt.err, "session")) {
				t.Errorf("IsProtocolError did not see through wrapping")
			}
		})
	}
	if !errors.Is(WrapProtocolError(io.ErrUnexpectedEOF, "step"), io.ErrUnexpectedEOF) {
		t.Errorf("cause is not reachable through Unwrap")
	}
	if IsProtocolError(io.EOF) {
		t.Errorf("io.EOF reported as protocol error")
	}
}

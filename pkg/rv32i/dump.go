package rv32i

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"golang.org/x/term"
)

const (
	colourChanged = "\x1b[1;33m"
	colourReset   = "\x1b[0m"
)

// DumpRegisters writes pc and x0..x31 with their ABI names, four per line.
// Non-zero registers are highlighted when w is a terminal.
func (m *Machine) DumpRegisters(w io.Writer) error {
	colour := false
	if f, ok := w.(*os.File); ok {
		colour = term.IsTerminal(int(f.Fd()))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "pc\t%#08x\tretired\t%d\n", m.Registers.PC(), m.retired)
	values := m.Registers.Values()
	for i, v := range values {
		cell := fmt.Sprintf("%#08x", v)
		if colour && v != 0 {
			cell = colourChanged + cell + colourReset
		}
		fmt.Fprintf(tw, "x%-2d %-4s\t%s", i, ABINames[i], cell)
		if i%4 == 3 {
			fmt.Fprintln(tw)
		} else {
			fmt.Fprint(tw, "\t")
		}
	}
	return tw.Flush()
}

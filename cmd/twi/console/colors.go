package console

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
)

// Hex renders a byte the way registers and addresses are printed.
func Hex(v byte) string {
	return White(fmt.Sprintf("0x%02x", v))
}

// Bytes renders a burst as space separated hex.
func Bytes(data []byte) string {
	return Cyan(fmt.Sprintf("% x", data))
}

package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit codes returned by twi commands.
const (
	ExitUsage       = 2
	ExitBus         = 3
	ExitUnconfirmed = 4
)

func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

package clix

import (
	"context"
)

// Dispatch resolves the first positional argument against commands and
// runs it, printing top-level usage for --help, no-command, or an unknown
// command name.
func Dispatch(ctx context.Context, o *IO, binary string, commands []*Command, args []string) int {
	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	if len(args) == 0 {
		printUsage(o, binary, commands)
		return 0
	}

	if args[0] == "-h" || args[0] == "--help" {
		printUsage(o, binary, commands)
		return 0
	}

	cmd, ok := commandMap[args[0]]
	if !ok {
		o.ErrPrintln("error: unknown command:", args[0])
		printUsage(o, binary, commands)

		return 1
	}

	return cmd.Run(ctx, o, args[1:])
}

func printUsage(o *IO, binary string, commands []*Command) {
	o.Println(binary)
	o.Println()
	o.Printf("Usage: %s <command> [args]\n", binary)
	o.Println()
	o.Println("Commands:")

	for _, cmd := range commands {
		o.Println(cmd.HelpLine())
	}
}

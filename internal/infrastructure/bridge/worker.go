package bridge

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"rackhost.audio/cli/internal/infrastructure/scanner"
)

// RunWorker is the helper process entry point: a strict
// request/response loop over stdin/stdout. It returns the process exit
// code when EXIT is received or the command pipe closes.
func RunWorker(in io.Reader, out io.Writer) int {
	loaded := make(map[string]struct{})

	commands := bufio.NewScanner(in)
	for commands.Scan() {
		line := strings.TrimSpace(commands.Text())
		if line == "" {
			continue
		}

		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case cmdInit:
			fmt.Fprintln(out, respOK)

		case cmdLoad:
			if arg == "" {
				fmt.Fprintln(out, "ERR missing path")
				continue
			}
			if _, reason := scanner.Inspect(arg); reason != "" {
				fmt.Fprintf(out, "ERR %s\n", reason)
				continue
			}
			loaded[arg] = struct{}{}
			fmt.Fprintln(out, respOK)

		case cmdUnload:
			delete(loaded, arg)
			fmt.Fprintln(out, respOK)

		case cmdProcess:
			if _, ok := loaded[arg]; !ok {
				fmt.Fprintln(out, "ERR plugin not loaded")
				continue
			}
			fmt.Fprintln(out, respOK)

		case cmdExit:
			return 0

		default:
			fmt.Fprintln(out, "ERR unknown command")
		}
	}
	return 0
}

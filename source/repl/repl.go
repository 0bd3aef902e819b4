package repl

import (
	"io"
	"strings"

	"github.com/lmorg/readline"

	"github.com/tim-hardcastle/cfunc/source/hub"
	"github.com/tim-hardcastle/cfunc/source/text"
)

// Start reads commands from the terminal and hands them to the hub until it is told to quit or the
// input runs out.
func Start(hb *hub.Hub, out io.Writer) {
	rline := readline.NewInstance()
	rline.SetPrompt(text.PROMPT)
	for {
		line, err := rline.Readline()
		if err != nil {
			// Ctrl-C and Ctrl-D both end up here.
			io.WriteString(out, "\n")
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if hb.Execute(line) {
			io.WriteString(out, text.Logo()+"Goodbye.\n\n")
			return
		}
	}
}

// Run feeds the hub a script, one command per line, as though it had been typed.
func Run(hb *hub.Hub, script string) bool {
	for _, line := range strings.Split(script, "\n") {
		if hb.Execute(line) {
			return true
		}
	}
	return false
}

package hub

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tim-hardcastle/cfunc/source/cfunc"
	"github.com/tim-hardcastle/cfunc/source/host"
	"github.com/tim-hardcastle/cfunc/source/report"
	"github.com/tim-hardcastle/cfunc/source/text"
)

var (
	MARGIN = 84
)

// The hub holds one routine under construction, the frame it runs in, and the dispatcher that
// compiles it. Each line of input is one command.
type Hub struct {
	out        io.Writer
	dispatcher *cfunc.Dispatcher
	frame      *host.Frame
	header     string
	impl       string
	hasImpl    bool
	lastErr    *report.Error
	quit       bool
}

func New(out io.Writer, d *cfunc.Dispatcher) *Hub {
	return &Hub{
		out:        out,
		dispatcher: d,
		frame:      host.NewFrame(nil, nil),
	}
}

// Do executes one line and returns what the hub has to say about it.
func (hub *Hub) Do(line string) (string, error) {
	verb, rest := splitVerb(line)
	switch verb {
	case "":
		return "", nil
	case "cache":
		return hub.describeCache(), nil
	case "call":
		return hub.call(strings.Fields(rest))
	case "captures":
		// New captures get new cells, all zero.
		hub.frame = host.NewFrame(hub.frame.Locals(), strings.Fields(rest))
		return text.OK, nil
	case "frame":
		return hub.describeFrame(), nil
	case "header":
		hub.header = text.Unescape(rest)
		return text.OK, nil
	case "help":
		return help(), nil
	case "impl":
		hub.impl = text.Unescape(rest)
		hub.hasImpl = true
		return text.OK, nil
	case "let":
		return hub.let(strings.Fields(rest))
	case "locals":
		hub.frame = hub.frame.WithLocals(strings.Fields(rest))
		return text.OK, nil
	case "quit":
		hub.quit = true
		return text.OK, nil
	case "source":
		unit, err := hub.dispatcher.Source(hub.frame.Routine(hub.header, hub.impl))
		if err != nil {
			return "", err
		}
		return string(unit), nil
	case "stats":
		return hub.describeStats(), nil
	case "why":
		return hub.why(), nil
	}
	return "", report.CreateErr("hub/verb", verb)
}

// Execute is Do writing its result, or its error, to the hub's output. It reports whether the user
// has asked to quit.
func (hub *Hub) Execute(line string) bool {
	result, err := hub.Do(line)
	if err != nil {
		hub.WriteError(err)
		return hub.quit
	}
	if result != "" {
		hub.WriteString(result + "\n")
	}
	return hub.quit
}

func (hub *Hub) QuitHappened() bool {
	return hub.quit
}

func (hub *Hub) Frame() *host.Frame {
	return hub.frame
}

func splitVerb(line string) (string, string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "//") {
		return "", ""
	}
	verb, rest, _ := strings.Cut(line, " ")
	return verb, strings.TrimSpace(rest)
}

func (hub *Hub) call(args []string) (string, error) {
	if !hub.hasImpl {
		return "", report.CreateErr("hub/call/missing")
	}
	values := make([]int64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return "", report.WrapErr(err, "hub/call/int", arg)
		}
		values[i] = v
	}
	fn, err := hub.dispatcher.Obtain(hub.frame.Routine(hub.header, hub.impl))
	if err != nil {
		return "", err
	}
	result, err := fn.Call(values...)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(result, 10), nil
}

func (hub *Hub) let(args []string) (string, error) {
	if len(args) != 2 {
		return "", report.CreateErr("hub/let/arity")
	}
	i, ok := hub.frame.Lookup(args[0])
	if !ok {
		return "", report.CreateErr("hub/let/name", args[0])
	}
	v, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", report.WrapErr(err, "hub/call/int", args[1])
	}
	hub.frame.SetCapture(i, v)
	return text.OK, nil
}

func (hub *Hub) describeFrame() string {
	var sb strings.Builder
	sb.WriteString("locals: " + strings.Join(hub.frame.Locals(), " ") + "\n")
	sb.WriteString("captures:")
	for i, v := range hub.frame.Snapshot() {
		sb.WriteString(" " + hub.frame.Captures()[i] + "=" + strconv.FormatInt(v, 10))
	}
	return sb.String()
}

func (hub *Hub) describeCache() string {
	entries := hub.dispatcher.Entries()
	if len(entries) == 0 {
		return "The cache is empty."
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		status := text.GOOD_BULLET
		if !e.Usable() {
			status = text.BROKEN
		}
		impl := strings.Join(strings.Fields(string(e.Impl())), " ")
		if r := []rune(impl); len(r) > 40 {
			impl = string(r[:37]) + "..."
		}
		lines = append(lines, status+text.Emph(impl)+" locals ("+strings.Join(e.Locals(), ", ")+
			") captures ("+strings.Join(e.Captures(), ", ")+")")
	}
	return strings.Join(lines, "\n")
}

func (hub *Hub) describeStats() string {
	s := hub.dispatcher.Stats()
	return "lookups " + strconv.Itoa(s.Lookups) +
		", hits " + strconv.Itoa(s.Hits) +
		", misses " + strconv.Itoa(s.Misses) +
		", comparisons " + strconv.Itoa(s.Comparisons) +
		", evictions " + strconv.Itoa(s.Evictions)
}

func (hub *Hub) why() string {
	if hub.lastErr == nil {
		return "There is no error to explain."
	}
	refLine := "Error has reference '" + hub.lastErr.ErrorId + "'."
	return strings.TrimRight(text.Wrap(hub.lastErr.Explain(), 0, MARGIN), "\n") + "\n\n" +
		strings.Repeat(" ", max(0, MARGIN-len(refLine)-2)) + refLine
}

func help() string {
	var sb strings.Builder
	sb.WriteString("Commands are:\n\n")
	for _, v := range helpTopics {
		sb.WriteString(text.BULLET + text.Cyan(v[0]) + strings.Repeat(" ", max(1, 24-len(v[0]))) + v[1] + "\n")
	}
	sb.WriteString("\nIn header and impl text, \\n and \\t stand for a newline and a tab.")
	return sb.String()
}

var helpTopics = [][2]string{
	{"header <text>", "Sets the text that goes before the routine."},
	{"impl <text>", "Sets the body of the routine."},
	{"locals <names>", "Names the routine's arguments, in order."},
	{"captures <names>", "Names the bindings the routine captures, all starting at 0."},
	{"let <capture> <int>", "Assigns to a capture."},
	{"call <ints>", "Obtains the routine and calls it."},
	{"frame", "Shows the locals and the values of the captures."},
	{"source", "Shows the C the routine compiles to."},
	{"cache", "Lists the cached routines, most recently used first."},
	{"stats", "Shows the cache's counters."},
	{"why", "Explains the last error."},
	{"help", "Shows this list."},
	{"quit", "Leaves."},
}

func (hub *Hub) WriteError(err error) {
	var e *report.Error
	if errors.As(err, &e) {
		hub.lastErr = e
	}
	hub.WriteString(text.Red("Error") + ": " + err.Error() + "\n")
}

func (hub *Hub) WriteString(s string) {
	io.WriteString(hub.out, s)
}

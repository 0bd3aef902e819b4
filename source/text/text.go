package text

// Text utilities for the hub and the CLI: colors, the logo, and the small amount of formatting the
// hub's responses need.

import (
	"strings"
)

const (
	VERSION        = "0.1.0"
	BULLET         = "  ▪ "
	BULLET_SPACING = "    " // I.e. whitespace the same width as BULLET.
	GOOD_BULLET    = "\033[32m  ▪ \033[0m"
	BROKEN         = "\033[31m  ✖ \033[0m"
	PROMPT         = "→ "
)

var (
	RESET  = "\033[0m"
	RED    = "\033[31m"
	GREEN  = "\033[32m"
	YELLOW = "\033[33m"
	CYAN   = "\033[36m"

	OK = Green("OK")
)

func Cyan(s string) string {
	return CYAN + s + RESET
}

func Emph(s string) string {
	return "'" + s + "'"
}

func Red(s string) string {
	return RED + s + RESET
}

func Green(s string) string {
	return GREEN + s + RESET
}

func Yellow(s string) string {
	return YELLOW + s + RESET
}

func Logo() string {
	var padding string
	if len(VERSION)%2 == 1 {
		padding = ","
	}
	titleText := " cfunc" + padding + " version " + VERSION + " "
	leftMargin := "  "
	bar := strings.Repeat("═", len(titleText)/2)
	logoString := "\n" +
		leftMargin + "╔" + bar + Cyan("◆") + bar + "╗\n" +
		leftMargin + "║" + titleText + "║\n" +
		leftMargin + "╚" + bar + Cyan("◆") + bar + "╝\n\n"
	return logoString
}

// Unescape expands the escapes \n, \t and \\ so that multi-line C can be typed on one line.
// Anything else after a backslash is left alone.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			sb.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '\\':
			sb.WriteByte('\\')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i+1])
		}
		i++
	}
	return sb.String()
}

// Wrap breaks s into lines no longer than width, at spaces, each line indented by margin spaces.
// Existing newlines are kept.
func Wrap(s string, margin, width int) string {
	var sb strings.Builder
	pad := strings.Repeat(" ", margin)
	for _, para := range strings.Split(s, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			if line != "" && len(line)+1+len(word) > width-margin {
				sb.WriteString(pad + line + "\n")
				line = ""
			}
			if line == "" {
				line = word
			} else {
				line = line + " " + word
			}
		}
		sb.WriteString(pad + line + "\n")
	}
	return sb.String()
}

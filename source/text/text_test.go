package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnescape(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"return 1;", "return 1;"},
		{`int x;\nint y;`, "int x;\nint y;"},
		{`\treturn x;`, "\treturn x;"},
		{`a\\nb`, `a\nb`},
		{`"%d\x"`, `"%d\x"`},
		{`trailing\`, `trailing\`},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, Unescape(test.input), test.input)
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "  one two\n  three\n", Wrap("one two three", 2, 12))
	assert.Equal(t, "a\n\nb\n", Wrap("a\n\nb", 0, 80))
}

func TestLogo(t *testing.T) {
	logo := Logo()
	assert.Contains(t, logo, " version "+VERSION+" ")
	for _, line := range strings.Split(logo, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "║") {
			title := strings.TrimSuffix(strings.TrimPrefix(line, "║"), "║")
			assert.Equal(t, 0, len(title)%2, title)
		}
	}
}

package report

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestCreateErr(t *testing.T) {
	e := CreateErr("hub/let/name", "n")
	assert.Equal(t, "hub/let/name", e.ErrorId)
	assert.Equal(t, "there is no capture called 'n'", e.Error())
	assert.Equal(t, []any{"n"}, e.Args)
	assert.Nil(t, e.Cause())
	assert.NotEmpty(t, e.Explain())
}

func TestCreateErrUnknown(t *testing.T) {
	assert.Panics(t, func() { CreateErr("no/such/error") })
}

func TestWrapErr(t *testing.T) {
	cause := errors.New("exec: not found")
	e := WrapErr(cause, "cfunc/build/launch", "tcc")
	assert.Equal(t, "failed to launch C compiler 'tcc': exec: not found", e.Error())
	assert.Same(t, cause, e.Cause())
	assert.True(t, errors.Is(e, cause))
}

func TestIs(t *testing.T) {
	inner := CreateErr("cfunc/load/open", "/tmp/x.so", "cannot open")
	outer := WrapErr(errors.WithMessage(inner, "compiler output"), "cfunc/call/unusable")
	tests := []struct {
		err  error
		id   string
		want bool
	}{
		{outer, "cfunc/call/unusable", true},
		{outer, "cfunc/load/open", true},
		{outer, "cfunc/load/symbol", false},
		{errors.Wrap(inner, "context"), "cfunc/load/open", true},
		{multierr.Combine(inner, errors.New("unlink")), "cfunc/load/open", true},
		{errors.New("plain"), "cfunc/load/open", false},
		{nil, "cfunc/load/open", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, Is(test.err, test.id), "%v / %s", test.err, test.id)
	}
}

func TestMapIsWellFormed(t *testing.T) {
	for id, creator := range ErrorCreatorMap {
		if id == "" {
			continue
		}
		require.NotNil(t, creator.Message, id)
		require.NotNil(t, creator.Explanation, id)
		parts := strings.Split(id, "/")
		assert.GreaterOrEqual(t, len(parts), 2, id)
		assert.Contains(t, []string{"cfunc", "hub", "journal"}, parts[0], id)
	}
}

func TestDescribeNames(t *testing.T) {
	e := CreateErr("cfunc/producer/capture", []string{"a", "b"})
	assert.Equal(t, "routine captures 'a', 'b' but its producer has no capture storage", e.Error())
}

func TestProducerTypes(t *testing.T) {
	assert.Equal(t, "header of type 'nil' cannot be used as source text", CreateErr("cfunc/producer/b", nil).Error())
	assert.Equal(t, "implementation of type 'map[string]int' cannot be used as source text",
		CreateErr("cfunc/producer/c", map[string]int{}).Error())
}

//go:build amd64 || arm64

package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func a() string {
	return "a"
}

func b() string {
	return "b"
}

func TestRedefine(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("a", a())
	require.NoError(t, Redefine(a, b))
	assert.Equal("b", a())

	assert.Equal("a", Original(a)())

	assert.NoError(Restore(a))
	assert.Equal("a", a())
	assert.ErrorIs(Restore(a), errNotPatched)
}

func TestRedefine_NotAFunction(t *testing.T) {
	tests := map[string]struct {
		fn, newFn any
	}{
		"first arg":  {"not a function", b},
		"second arg": {a, 42},
		"both args":  {[]int{1, 2, 3}, map[string]int{}},
		"nil first":  {nil, b},
		"nil second": {a, nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Redefine(tc.fn, tc.newFn))
		})
	}
}

func TestRedefine_SignatureMismatch(t *testing.T) {
	tests := map[string]struct {
		fn, newFn any
	}{
		"number of inputs":  {func(x int) int { return x }, func(x, y int) int { return x + y }},
		"number of outputs": {func() int { return 1 }, func() (int, error) { return 1, nil }},
		"input types":       {func(x int) int { return x }, func(x string) int { return len(x) }},
		"output types":      {func() int { return 1 }, func() string { return "1" }},
		"variadic":          {func(x []int) {}, func(x ...int) {}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Redefine(tc.fn, tc.newFn)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "signatures do not match")
		})
	}
}

//go:noinline
func multipleArgs(x int, y string, z bool) int {
	if z {
		return x + len(y)
	}
	return x
}

func multipleArgsReplacement(x int, y string, z bool) int {
	return 999
}

func TestRedefine_MultipleArgs(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(5, multipleArgs(2, "foo", true))
	require.NoError(t, Redefine(multipleArgs, multipleArgsReplacement))
	assert.Equal(999, multipleArgs(2, "foo", true))
	assert.Equal(2, Original(multipleArgs)(2, "foo", false))

	require.NoError(t, Restore(multipleArgs))
	assert.Equal(2, multipleArgs(2, "foo", false))
}

//go:noinline
func greeting() string {
	return "hello"
}

func TestRedefine_Twice(t *testing.T) {
	assert := assert.New(t)

	require.NoError(t, Redefine(greeting, func() string { return "hi" }))
	require.NoError(t, Redefine(greeting, func() string { return "hey" }))
	assert.Equal("hey", greeting())
	assert.Equal("hello", Original(greeting)())

	require.NoError(t, Restore(greeting))
	assert.Equal("hello", greeting())
}

type counter struct {
	Num int
}

//go:noinline
func (c *counter) Inc() {
	c.Num++
}

type doubler struct {
	Num int
}

func (d *doubler) Double() {
	d.Num *= 2
}

func TestRedefineMethod(t *testing.T) {
	assert := assert.New(t)

	c := &counter{}
	c.Inc()
	c.Inc()
	assert.Equal(2, c.Num)

	require.NoError(t, RedefineMethod((*counter).Inc, (*doubler).Double))
	c.Inc()
	assert.Equal(4, c.Num)

	Original((*counter).Inc)(c)
	assert.Equal(5, c.Num)

	require.NoError(t, Restore((*counter).Inc))
	c.Inc()
	assert.Equal(6, c.Num)
}

func TestOriginal_NotRedefined(t *testing.T) {
	assert.Equal(t, "b", Original(b)())

	var nilFn func() string
	assert.Nil(t, Original(nilFn))
}

package splice_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pboyd/splice"
	"github.com/pboyd/splice/memhost"
)

type logEntry struct {
	level   string
	message string
	kv      []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, message string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, message, kv})
}

func (l *recordingLogger) Debug(m string, kv ...any)   { l.add("debug", m, kv) }
func (l *recordingLogger) Info(m string, kv ...any)    { l.add("info", m, kv) }
func (l *recordingLogger) Warning(m string, kv ...any) { l.add("warning", m, kv) }
func (l *recordingLogger) Error(m string, kv ...any)   { l.add("error", m, kv) }

func (l *recordingLogger) count(level, message string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.message == message {
			n++
		}
	}
	return n
}

// The instructions A, B and C of the worked example.
var (
	instA = splice.New(splice.Ldarg0)
	instB = splice.New(splice.Ldfld, splice.FieldRef{Owner: "Host", Name: "b"})
	instC = splice.New(splice.Ret)
)

func abc() splice.Sequence {
	return splice.Sequence{instA.Clone(), instB.Clone(), instC.Clone()}
}

// method is one method of a test host.
type method struct {
	id   splice.MethodID
	body splice.Sequence
}

func newHost(t *testing.T, methods ...method) (*memhost.Program, *splice.Driver, *recordingLogger) {
	t.Helper()

	host := memhost.New("1.5.4104")
	for _, m := range methods {
		host.DefineMethod(m.id, m.body)
	}
	logger := &recordingLogger{}
	drv := splice.NewDriver(splice.NewResolver(host), host)
	drv.Log = logger
	return host, drv, logger
}

// branchBeforeB inserts [brtrue L, ldc.i4.1] before B with L attached to C.
func branchBeforeB(name string, target splice.MethodID) *splice.Descriptor {
	return &splice.Descriptor{
		Name:            name,
		Target:          target,
		Anchor:          splice.OpIs(splice.Ldfld).WithOperand(splice.FieldRef{Owner: "Host", Name: "b"}),
		InsertionOffset: 0,
		Targets:         []splice.JumpTarget{splice.JumpTargetOffset(1)},
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return splice.Snippet{
				b.Branch(splice.Brtrue, b.Label(0)),
				splice.New(splice.LdcI4_1),
			}, nil
		},
	}
}

func TestDriver_WorkedExample(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	host, drv, logger := newHost(t, method{id, abc()})

	out := drv.ApplyOne(branchBeforeB("example", id))
	require.True(out.Applied(), "outcome: %+v", out)
	assert.Equal(2, out.Inserted)
	assert.Equal(1, logger.count("info", "applied"))

	got, err := host.Snapshot(id)
	require.NoError(err)
	require.Len(got, 5)

	assert.Equal(splice.Ldarg0, got[0].Op)
	assert.Equal(splice.Brtrue, got[1].Op)
	assert.Equal(splice.LdcI4_1, got[2].Op)
	assert.True(instB.Equal(got[3]))
	assert.Equal(splice.Ret, got[4].Op)

	require.Len(got[4].Labels, 1)
	l := got[4].Labels[0]
	target, ok := got[1].Target()
	assert.True(ok)
	assert.Equal(l, target)

	for _, i := range []int{0, 1, 2, 3} {
		assert.Empty(got[i].Labels)
	}
	assert.NoError(splice.Verify(got))
}

func TestDriver_WithoutLogger(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	host := memhost.New("1.5.4104")
	host.DefineMethod(id, abc())
	drv := &splice.Driver{Resolver: splice.NewResolver(host), Bodies: host}

	broken := branchBeforeB("broken", id)
	broken.Inject = func(*splice.Build) (splice.Snippet, error) {
		panic("injector failed")
	}

	var out splice.Outcome
	assert.NotPanics(func() { out = drv.ApplyOne(broken) })
	assert.Equal(splice.InvalidPatch, out.Reason)

	c, err := splice.NewCatalog(branchBeforeB("example", id))
	require.NoError(t, err)
	var outcomes []splice.Outcome
	assert.NotPanics(func() { outcomes = drv.Apply(c) })
	require.Len(t, outcomes, 1)
	assert.True(outcomes[0].Applied())
}

func TestDriver_AnchorNotFound(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	host, drv, logger := newHost(t, method{id, abc()})

	desc := branchBeforeB("missing", id)
	desc.Anchor = splice.OpIs(splice.Castclass)

	out := drv.ApplyOne(desc)
	assert.False(out.Applied())
	assert.Equal(splice.Skipped, out.State)
	assert.Equal(splice.Locating, out.FailedAt)
	assert.Equal(splice.AnchorNotFound, out.Reason)
	assert.ErrorIs(out.Err, splice.ErrAnchorNotFound)
	assert.Equal(1, logger.count("warning", "anchor not found"))

	got, err := host.Snapshot(id)
	if assert.NoError(err) {
		assert.True(abc().Equal(got))
	}
}

func TestDriver_FailSoftIsolation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	broken := splice.MethodID{Type: "Host", Method: "Broken"}
	good := splice.MethodID{Type: "Host", Method: "Good"}
	host, drv, logger := newHost(t,
		method{broken, abc()},
		method{good, abc()},
	)

	bad := branchBeforeB("bad", broken)
	bad.Anchor = splice.OpIs(splice.StelemRef)

	catalog, err := splice.NewCatalog(bad, branchBeforeB("good", good))
	require.NoError(err)

	outcomes := drv.Apply(catalog)
	require.Len(outcomes, 2)
	assert.Equal(splice.AnchorNotFound, outcomes[0].Reason)
	assert.True(outcomes[1].Applied())
	assert.Equal(1, logger.count("warning", "anchor not found"))

	brokenBody, err := host.Snapshot(broken)
	require.NoError(err)
	assert.True(abc().Equal(brokenBody), "skipped target changed:\n%v", brokenBody)

	goodBody, err := host.Snapshot(good)
	require.NoError(err)
	assert.Len(goodBody, 5)
}

func TestDriver_TargetUnresolved(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	_, drv, logger := newHost(t, method{id, abc()})

	cases := map[string]splice.MethodID{
		"no type":   {Type: "Nope", Method: "M"},
		"no method": {Type: "Host", Method: "Nope"},
		"no scope":  {Type: "Host", Scopes: []string{"<>c"}, Method: "M"},
	}

	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			out := drv.ApplyOne(branchBeforeB(name, target))
			assert.Equal(splice.TargetUnresolved, out.Reason)
			assert.Equal(splice.Resolving, out.FailedAt)
			assert.ErrorIs(out.Err, splice.ErrTargetUnresolved)
		})
	}
	assert.Equal(len(cases), logger.count("warning", "target unresolved"))
}

func TestDriver_NestedScope(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Dialog_FormCaravan", Scopes: []string{"<>c__DisplayClass95_0"}, Method: "<CheckForErrors>b__1"}
	host, drv, _ := newHost(t, method{id, abc()})

	out := drv.ApplyOne(branchBeforeB("nested", id))
	assert.True(out.Applied(), "outcome: %+v", out)

	got, err := host.Snapshot(id)
	if assert.NoError(err) {
		assert.Len(got, 5)
	}
}

func TestDriver_IdempotentResolution(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id := splice.MethodID{Type: "Host", Scopes: []string{"<GetGizmos>d__18"}, Method: "MoveNext"}
	host, _, _ := newHost(t, method{id, abc()})
	resolver := splice.NewResolver(host)

	m1, err := resolver.Resolve(id)
	require.NoError(err)
	m2, err := resolver.Resolve(id)
	require.NoError(err)

	b1, err := host.Body(m1)
	require.NoError(err)
	b2, err := host.Body(m2)
	require.NoError(err)

	assert.True(b1.Equal(b2))
	b1[0].Labels = append(b1[0].Labels, 1)
	assert.False(b1.Equal(b2), "bodies share instructions")
}

func TestDriver_InvalidPatch(t *testing.T) {
	id := splice.MethodID{Type: "Host", Method: "M"}

	cases := map[string]func(d *splice.Descriptor){
		"insertion out of range": func(d *splice.Descriptor) {
			d.InsertionOffset = 10
		},
		"jump target out of range": func(d *splice.Descriptor) {
			d.Targets = []splice.JumpTarget{splice.JumpTargetOffset(-5)}
		},
		"dangling branch": func(d *splice.Descriptor) {
			d.Inject = func(b *splice.Build) (splice.Snippet, error) {
				return splice.Snippet{b.Branch(splice.Br, b.Labeler.Mint())}, nil
			}
		},
		"injector error": func(d *splice.Descriptor) {
			d.Inject = func(b *splice.Build) (splice.Snippet, error) {
				return nil, errors.New("boom")
			}
		},
		"injector panic": func(d *splice.Descriptor) {
			d.Inject = func(b *splice.Build) (splice.Snippet, error) {
				return splice.Snippet{b.Branch(splice.Ret, b.Label(0))}, nil
			}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			host, drv, logger := newHost(t, method{id, abc()})
			desc := branchBeforeB(name, id)
			mutate(desc)

			out := drv.ApplyOne(desc)
			assert.Equal(splice.InvalidPatch, out.Reason)
			assert.Error(out.Err)
			assert.Equal(1, logger.count("error", "invalid patch"))

			got, err := host.Snapshot(id)
			if assert.NoError(err) {
				assert.True(abc().Equal(got))
			}

			drv.Strict = true
			assert.Panics(func() { drv.ApplyOne(desc) })
		})
	}
}

func TestDriver_JumpTargetAnchor(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	body := splice.Sequence{
		splice.New(splice.Ldloc0),
		splice.New(splice.Ret),
		splice.New(splice.LdcR4, splice.Float(0.035)),
		splice.New(splice.Ret),
	}
	host, drv, _ := newHost(t, method{id, body})

	desc := &splice.Descriptor{
		Name:    "first ret",
		Target:  id,
		Anchor:  splice.FloatNear(splice.LdcR4, 0.035, 0.001),
		Targets: []splice.JumpTarget{splice.FirstMatch(splice.OpIs(splice.Ret))},
		Inject: func(b *splice.Build) (splice.Snippet, error) {
			return splice.Snippet{splice.New(splice.Ldnull), b.Branch(splice.BrfalseS, b.Label(0))}, nil
		},
	}

	out := drv.ApplyOne(desc)
	require.True(out.Applied(), "outcome: %+v", out)

	got, err := host.Snapshot(id)
	require.NoError(err)
	require.Len(got, 6)
	l, _ := got[3].Target()
	assert.True(got[1].HasLabel(l))
	assert.Empty(got[5].Labels)

	desc.Name = "missing target"
	desc.Targets = []splice.JumpTarget{splice.FirstMatch(splice.OpIs(splice.Castclass))}
	out = drv.ApplyOne(desc)
	assert.Equal(splice.AnchorNotFound, out.Reason)
	assert.Equal(splice.Building, out.FailedAt)
}

func TestDriver_Disabled(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	host, drv, logger := newHost(t, method{id, abc()})

	require.NoError(t, drv.Configure(&splice.Config{Disabled: []string{"off"}}))

	out := drv.ApplyOne(branchBeforeB("off", id))
	assert.Equal(splice.Disabled, out.Reason)
	assert.Equal(1, logger.count("debug", "disabled"))

	got, _ := host.Snapshot(id)
	assert.True(abc().Equal(got))
}

func TestDriver_Categories(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	_, drv, _ := newHost(t, method{id, abc()})
	require.NoError(t, drv.Configure(&splice.Config{Categories: []string{"BaseGame"}}))

	other := branchBeforeB("other", id)
	other.Category = "Royalty"
	assert.Equal(splice.Disabled, drv.ApplyOne(other).Reason)

	base := branchBeforeB("base", id)
	base.Category = "BaseGame"
	assert.True(drv.ApplyOne(base).Applied())
}

func TestDriver_HostVersion(t *testing.T) {
	assert := assert.New(t)

	id := splice.MethodID{Type: "Host", Method: "M"}
	_, drv, logger := newHost(t, method{id, abc()})
	require.NoError(t, drv.Configure(&splice.Config{HostVersion: "1.6.0"}))
	assert.True(drv.HostVersion.Equal(semver.MustParse("1.6.0")))

	desc := branchBeforeB("versioned", id)
	desc.HostVersion = "~1.5"

	out := drv.ApplyOne(desc)
	assert.True(out.Applied())
	assert.True(out.OutsideKnownVersions)
	assert.Equal(1, logger.count("warning", "host version outside known-good range"))

	assert.Error(drv.Configure(&splice.Config{HostVersion: "not a version"}))
}

func TestDriver_CommitFailed(t *testing.T) {
	id := splice.MethodID{Type: "Host", Method: "M"}
	host, _, logger := newHost(t, method{id, abc()})

	drv := splice.NewDriver(splice.NewResolver(host), refusingAccessor{host})
	drv.Log = logger

	out := drv.ApplyOne(branchBeforeB("refused", id))
	assert.Equal(t, splice.CommitFailed, out.Reason)
	assert.Equal(t, splice.Committing, out.FailedAt)
	assert.Equal(t, 1, logger.count("error", "commit failed"))
}

type refusingAccessor struct {
	*memhost.Program
}

func (refusingAccessor) Replace(m splice.Method, _ splice.Sequence) error {
	return fmt.Errorf("%v is read-only", m.ID())
}

func TestNewCatalog(t *testing.T) {
	id := splice.MethodID{Type: "Host", Method: "M"}

	_, err := splice.NewCatalog(branchBeforeB("a", id), branchBeforeB("a", id))
	assert.ErrorContains(t, err, "already registered")

	cases := map[string]func(d *splice.Descriptor){
		"no name":     func(d *splice.Descriptor) { d.Name = "" },
		"no target":   func(d *splice.Descriptor) { d.Target = splice.MethodID{} },
		"no anchor":   func(d *splice.Descriptor) { d.Anchor = nil },
		"no injector": func(d *splice.Descriptor) { d.Inject = nil },
		"bad version": func(d *splice.Descriptor) { d.HostVersion = "~~" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := branchBeforeB("x", id)
			mutate(d)
			_, err := splice.NewCatalog(d)
			assert.Error(t, err)
		})
	}

	c, err := splice.NewCatalog(branchBeforeB("a", id), branchBeforeB("b", id))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	d, ok := c.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, "b", d.Name)
	assert.Empty(t, c.Category("BaseGame"))
}

package plugins_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/plugins"
	"github.com/name2020117/gridflow/internal/settings"
)

// fakeCapability records its configuration for assertions.
type fakeCapability struct {
	args         map[string]string
	configureErr error
}

func (f *fakeCapability) Configure(args map[string]string) error {
	f.args = args
	return f.configureErr
}

func (*fakeCapability) Run(context.Context, plugins.RunContext) error {
	return nil
}

func testDocument() *settings.Document {
	return &settings.Document{
		Modules: []settings.Entry{
			{Name: "demographics", Filepath: "/share/modules/demographics",
				Arguments: map[string]string{"directory": "/tmp/dcm"}},
			{Name: "qa", Filepath: "/share/modules/qa"},
		},
		Processors: []settings.Entry{
			{Name: "fmriqa", Filepath: "/share/processors/fmriqa"},
		},
		Projects: []settings.Assignment{
			{Project: "demo", Modules: "demographics,qa", Processors: "fmriqa"},
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	reg := plugins.NewRegistry()

	require.NoError(t, reg.Register("demographics", func() plugins.Capability { return &fakeCapability{} }))
	assert.True(t, reg.Has("demographics"))
	assert.False(t, reg.Has("absent"))

	err := reg.Register("demographics", func() plugins.Capability { return &fakeCapability{} })
	require.Error(t, err)
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	reg := plugins.NewRegistry()
	require.NoError(t, reg.Register("b", func() plugins.Capability { return &fakeCapability{} }))
	require.NoError(t, reg.Register("a", func() plugins.Capability { return &fakeCapability{} }))

	assert.Equal(t, []string{"a", "b"}, reg.Names())
}

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	reg := plugins.NewRegistry()
	for _, name := range []string{"demographics", "qa", "fmriqa"} {
		require.NoError(t, reg.Register(name, func() plugins.Capability { return &fakeCapability{} }))
	}

	bundle, err := reg.Resolve(testDocument(), "demo")

	require.NoError(t, err)
	require.Len(t, bundle.Modules, 2)
	require.Len(t, bundle.Processors, 1)
	assert.Equal(t, "demographics", bundle.Modules[0].Name)
	assert.Equal(t, "qa", bundle.Modules[1].Name)

	// Arguments from the catalog entry reach Configure.
	fake := bundle.Modules[0].Capability.(*fakeCapability)
	assert.Equal(t, "/tmp/dcm", fake.args["directory"])
}

func TestRegistry_Resolve_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(*plugins.Registry)
		doc     *settings.Document
		project string
	}{
		{
			name:    "unknown project",
			setup:   func(*plugins.Registry) {},
			doc:     testDocument(),
			project: "absent",
		},
		{
			name:    "assignment names undefined entry",
			setup:   func(*plugins.Registry) {},
			doc: &settings.Document{
				Projects: []settings.Assignment{{Project: "demo", Modules: "ghost"}},
			},
			project: "demo",
		},
		{
			name:    "no registered implementation",
			setup:   func(*plugins.Registry) {},
			doc:     testDocument(),
			project: "demo",
		},
		{
			name: "configure failure",
			setup: func(reg *plugins.Registry) {
				for _, name := range []string{"demographics", "qa", "fmriqa"} {
					_ = reg.Register(name, func() plugins.Capability {
						return &fakeCapability{configureErr: errors.New("bad args")}
					})
				}
			},
			doc:     testDocument(),
			project: "demo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reg := plugins.NewRegistry()
			tt.setup(reg)

			_, err := reg.Resolve(tt.doc, tt.project)

			require.Error(t, err)
			assert.True(t, faults.IsKind(err, faults.KindConfiguration))
		})
	}
}

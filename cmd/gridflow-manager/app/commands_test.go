package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/plugins"
	"github.com/name2020117/gridflow/internal/stages"
)

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()
	require.NotNil(t, root)
	assert.Equal(t, "gridflow-manager", root.Use)

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "catalog")
	assert.Contains(t, names, "reap-locks")
	assert.Contains(t, names, "version")
}

func TestRunCmdFlags(t *testing.T) {
	assert.NotNil(t, runCmd.Flags().Lookup("workers"))
	assert.NotNil(t, runCmd.Flags().Lookup("runner"))
	assert.NotNil(t, runCmd.Flags().Lookup("metrics-enabled"))
	assert.NotNil(t, catalogCmd.Flags().Lookup("prune-only"))

	flag := runCmd.Flags().Lookup("runner")
	assert.Equal(t, RunnerCommand, flag.DefValue)
}

func TestNewStageRunner(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want any
	}{
		{name: "default mode spawns commands", mode: "", want: (*stages.CommandRunner)(nil)},
		{name: "command mode spawns commands", mode: RunnerCommand, want: (*stages.CommandRunner)(nil)},
		{name: "plugin mode runs in-process", mode: RunnerPlugin, want: (*plugins.Runner)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, err := newStageRunner(tt.mode)
			require.NoError(t, err)
			assert.IsType(t, tt.want, runner)
		})
	}
}

func TestNewStageRunnerUnknownMode(t *testing.T) {
	runner, err := newStageRunner("remote")
	require.Error(t, err)
	assert.Nil(t, runner)
	assert.Equal(t, faults.KindConfiguration, faults.KindOf(err))
}

package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/name2020117/gridflow/internal/catalog"
	"github.com/name2020117/gridflow/internal/config"
	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/registry"
	"github.com/name2020117/gridflow/internal/registry/mocks"
	"github.com/name2020117/gridflow/internal/settings"
)

const testInstance = "gridflow@worker1"

func testConfig(t *testing.T) *config.Instance {
	t.Helper()
	return &config.Instance{
		Name:            testInstance,
		SettingsDir:     t.TempDir(),
		ProcessorLib:    "/opt/gridflow/processors",
		ModuleLib:       "/opt/gridflow/modules",
		ImageDir:        "/data/images",
		HostURL:         "https://grid.example.org",
		QueueLimit:      300,
		JobEmailOptions: "FAIL",
	}
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
}

func expectProjectExport(client *mocks.MockClient, records []registry.Record) {
	client.EXPECT().
		Export(gomock.Any(), registry.ExportOptions{
			Fields: []string{
				catalog.FieldProjectName,
				catalog.FieldInstance,
				registry.CompleteField(catalog.GeneralForm),
			},
			Labels: true,
		}).
		Return(records, nil)
}

func expectFormExport(client *mocks.MockClient, form, project string, rec registry.Record) {
	var records []registry.Record
	if rec != nil {
		records = []registry.Record{rec}
	}
	client.EXPECT().
		Export(gomock.Any(), registry.ExportOptions{
			Forms:   []string{form},
			Records: []string{project},
		}).
		Return(records, nil)
}

func TestEligibleProjects(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	expectProjectExport(client, []registry.Record{
		{
			catalog.FieldProjectName: "alpha",
			catalog.FieldInstance:    testInstance,
			"general_complete":       registry.LabelComplete,
		},
		{
			catalog.FieldProjectName: "beta",
			catalog.FieldInstance:    "other@worker2",
			"general_complete":       registry.LabelComplete,
		},
		{
			catalog.FieldProjectName: "gamma",
			catalog.FieldInstance:    testInstance,
			"general_complete":       "Incomplete",
		},
		{
			catalog.FieldProjectName: "delta",
			catalog.FieldInstance:    testInstance,
			"general_complete":       registry.LabelComplete,
		},
	})

	c := catalog.New(client, testConfig(t))
	projects, err := c.EligibleProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "delta"}, projects)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	cfg := testConfig(t)

	// A stale document from an earlier generation must not survive.
	stale := filepath.Join(cfg.SettingsDir, settings.Filename("retired"))
	require.NoError(t, os.WriteFile(stale, []byte("projects: []\n"), 0640))

	expectProjectExport(client, []registry.Record{
		{
			catalog.FieldProjectName: "alpha",
			catalog.FieldInstance:    testInstance,
			"general_complete":       registry.LabelComplete,
		},
	})
	client.EXPECT().
		Forms(gomock.Any()).
		Return([]string{"general", "module_freesurfer", "module_dcm2nii", "processor_fmriqa"}, nil)

	expectFormExport(client, "module_freesurfer", "alpha", registry.Record{
		"module_freesurfer_complete": registry.StatusComplete,
		"mod_fs_file":                "/opt/gridflow/modules/freesurfer.yaml",
		"mod_fs_args":                "version: 7.2\r\nthreads: 4\r\n",
	})
	expectFormExport(client, "module_dcm2nii", "alpha", registry.Record{
		"module_dcm2nii_complete": registry.StatusIncomplete,
		"mod_dcm_file":            "/opt/gridflow/modules/dcm2nii.yaml",
	})
	expectFormExport(client, "processor_fmriqa", "alpha", registry.Record{
		"processor_fmriqa_complete": registry.StatusComplete,
		"proc_fmriqa_file":          "/opt/gridflow/processors/fmriqa.yaml",
	})

	c := catalog.New(client, cfg, catalog.WithClock(fixedClock))
	written, err := c.Refresh(context.Background())
	require.NoError(t, err)

	want := filepath.Join(cfg.SettingsDir, settings.Filename("alpha"))
	assert.Equal(t, []string{want}, written)
	assert.NoFileExists(t, stale)

	doc, err := settings.Load(want)
	require.NoError(t, err)

	assert.Equal(t, cfg.ModuleLib, doc.ModuleLib)
	assert.Equal(t, cfg.HostURL, doc.Attrs.HostURL)
	assert.Equal(t, cfg.QueueLimit, doc.Attrs.QueueLimit)

	require.Len(t, doc.Modules, 1)
	assert.Equal(t, "freesurfer", doc.Modules[0].Name)
	assert.Equal(t, "/opt/gridflow/modules/freesurfer.yaml", doc.Modules[0].Filepath)
	assert.Equal(t, map[string]string{"version": "7.2", "threads": "4"}, doc.Modules[0].Arguments)

	require.Len(t, doc.Processors, 1)
	assert.Equal(t, "fmriqa", doc.Processors[0].Name)
	assert.Empty(t, doc.YAMLProcessors)

	require.Len(t, doc.Projects, 1)
	assert.Equal(t, "alpha", doc.Projects[0].Project)
	assert.Equal(t, "freesurfer", doc.Projects[0].Modules)
	assert.Equal(t, "fmriqa", doc.Projects[0].Processors)
}

func TestRefreshDeterministic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	cfg := testConfig(t)

	for range 2 {
		expectProjectExport(client, []registry.Record{
			{
				catalog.FieldProjectName: "alpha",
				catalog.FieldInstance:    testInstance,
				"general_complete":       registry.LabelComplete,
			},
		})
		client.EXPECT().Forms(gomock.Any()).Return([]string{"module_freesurfer"}, nil)
		expectFormExport(client, "module_freesurfer", "alpha", registry.Record{
			"module_freesurfer_complete": registry.StatusComplete,
			"mod_fs_file":                "/opt/gridflow/modules/freesurfer.yaml",
			"mod_fs_args":                "b: 2\na: 1",
		})
	}

	c := catalog.New(client, cfg, catalog.WithClock(fixedClock))
	path := filepath.Join(cfg.SettingsDir, settings.Filename("alpha"))

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRefreshFaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		record   registry.Record
		wantKind faults.Kind
	}{
		{
			name: "missing file key",
			record: registry.Record{
				"module_broken_complete": registry.StatusComplete,
				"mod_broken_args":        "a: 1",
			},
			wantKind: faults.KindConfiguration,
		},
		{
			name: "multiple file keys",
			record: registry.Record{
				"module_broken_complete": registry.StatusComplete,
				"one_file":               "/a.yaml",
				"two_file":               "/b.yaml",
			},
			wantKind: faults.KindConfiguration,
		},
		{
			name: "malformed argument line",
			record: registry.Record{
				"module_broken_complete": registry.StatusComplete,
				"mod_broken_file":        "/a.yaml",
				"mod_broken_args":        "no separator here",
			},
			wantKind: faults.KindConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			client := mocks.NewMockClient(ctrl)
			cfg := testConfig(t)

			expectProjectExport(client, []registry.Record{
				{
					catalog.FieldProjectName: "alpha",
					catalog.FieldInstance:    testInstance,
					"general_complete":       registry.LabelComplete,
				},
			})
			client.EXPECT().Forms(gomock.Any()).Return([]string{"module_broken"}, nil)
			expectFormExport(client, "module_broken", "alpha", tt.record)

			c := catalog.New(client, cfg)
			_, err := c.Refresh(context.Background())
			require.Error(t, err)
			assert.True(t, faults.IsKind(err, tt.wantKind))
		})
	}
}

func TestRemoveDisabled(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	cfg := testConfig(t)

	enabled := filepath.Join(cfg.SettingsDir, settings.Filename("alpha"))
	disabled := filepath.Join(cfg.SettingsDir, settings.Filename("beta"))
	require.NoError(t, os.WriteFile(enabled, []byte("projects: []\n"), 0640))
	require.NoError(t, os.WriteFile(disabled, []byte("projects: []\n"), 0640))

	client.EXPECT().
		Export(gomock.Any(), registry.ExportOptions{
			Fields: []string{catalog.FieldProjectName, registry.CompleteField(catalog.GeneralForm)},
		}).
		Return([]registry.Record{
			{catalog.FieldProjectName: "alpha", "general_complete": registry.StatusComplete},
			{catalog.FieldProjectName: "beta", "general_complete": registry.StatusIncomplete},
			{catalog.FieldProjectName: "gamma", "general_complete": ""},
		}, nil)

	c := catalog.New(client, cfg)
	require.NoError(t, c.RemoveDisabled(context.Background()))

	assert.FileExists(t, enabled)
	assert.NoFileExists(t, disabled)
}

func TestDocuments(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	cfg := testConfig(t)

	for _, name := range []string{"settings-b.yaml", "settings-a.yaml", "notes.txt", "other.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.SettingsDir, name), []byte("x"), 0640))
	}

	c := catalog.New(client, cfg)
	paths, err := c.Documents()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(cfg.SettingsDir, "settings-a.yaml"),
		filepath.Join(cfg.SettingsDir, "settings-b.yaml"),
	}, paths)
}

// Package config provides the typed configuration for one coordinating
// instance. Credentials come from the process environment; everything
// else is the instance's own record in the remote registry, validated
// once at load time.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/registry"
)

// EnvPrefix is the prefix for all environment variables consumed by
// the manager.
const EnvPrefix = "GRIDFLOW"

// DefaultBuildWorkers is the build pool capacity when the instance
// record does not override it.
const DefaultBuildWorkers = 10

// Instance record field names.
const (
	FieldSettingsDir     = "main_projectsettingsdir"
	FieldLogDir          = "main_logdir"
	FieldResultsDir      = "main_resultsdir"
	FieldProcessorLib    = "main_processorlib"
	FieldModuleLib       = "main_modulelib"
	FieldImageDir        = "main_imagedir"
	FieldHostURL         = "main_host"
	FieldQueueLimit      = "main_queuelimit"
	FieldJobEmailOptions = "main_jobemailoptions"
	FieldBuildWorkers    = "main_buildworkers"
)

// Credentials are the registry endpoint and access tokens. Two tokens
// exist because instance records and project records live in separate
// registry projects.
type Credentials struct {
	URL            string
	InstancesToken string
	ProjectsToken  string
}

// CredentialsFromEnv reads credentials from GRIDFLOW_REGISTRY_URL,
// GRIDFLOW_REGISTRY_INSTANCES_TOKEN, and
// GRIDFLOW_REGISTRY_PROJECTS_TOKEN. Absence of any is fatal.
func CredentialsFromEnv() (*Credentials, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	creds := &Credentials{
		URL:            v.GetString("REGISTRY_URL"),
		InstancesToken: v.GetString("REGISTRY_INSTANCES_TOKEN"),
		ProjectsToken:  v.GetString("REGISTRY_PROJECTS_TOKEN"),
	}

	switch {
	case creds.URL == "":
		return nil, faults.Configuration("%s_REGISTRY_URL is not set", EnvPrefix)
	case creds.InstancesToken == "":
		return nil, faults.Configuration("%s_REGISTRY_INSTANCES_TOKEN is not set", EnvPrefix)
	case creds.ProjectsToken == "":
		return nil, faults.Configuration("%s_REGISTRY_PROJECTS_TOKEN is not set", EnvPrefix)
	}
	return creds, nil
}

// Instance is the validated settings record for this coordinating
// instance.
type Instance struct {
	// Name is the instance identity string the record was loaded for.
	Name string

	// SettingsDir holds the materialized per-project documents.
	SettingsDir string

	// LogDir holds per-(stage, project) log files.
	LogDir string

	// ResultsDir is the shared results tree; lock files live in its
	// FlagFiles subdirectory.
	ResultsDir string

	ProcessorLib string
	ModuleLib    string
	ImageDir     string

	HostURL         string
	QueueLimit      int
	JobEmailOptions string

	// BuildWorkers bounds the build pool.
	BuildWorkers int
}

// LoadInstance fetches and validates the instance record keyed by the
// instance identity string.
func LoadInstance(ctx context.Context, client registry.Client, instanceName string) (*Instance, error) {
	records, err := client.Export(ctx, registry.ExportOptions{Records: []string{instanceName}})
	if err != nil {
		return nil, fmt.Errorf("failed to export instance record: %w", err)
	}
	if len(records) == 0 {
		return nil, faults.Configuration("no instance record for %q", instanceName)
	}

	rec := records[0]
	inst := &Instance{
		Name:            instanceName,
		SettingsDir:     rec[FieldSettingsDir],
		LogDir:          rec[FieldLogDir],
		ResultsDir:      rec[FieldResultsDir],
		ProcessorLib:    rec[FieldProcessorLib],
		ModuleLib:       rec[FieldModuleLib],
		ImageDir:        rec[FieldImageDir],
		HostURL:         rec[FieldHostURL],
		JobEmailOptions: rec[FieldJobEmailOptions],
		BuildWorkers:    DefaultBuildWorkers,
	}

	if raw := rec[FieldQueueLimit]; raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, faults.Configuration("invalid %s %q for %q", FieldQueueLimit, raw, instanceName)
		}
		inst.QueueLimit = limit
	}
	if raw := rec[FieldBuildWorkers]; raw != "" {
		workers, err := strconv.Atoi(raw)
		if err != nil || workers <= 0 {
			return nil, faults.Configuration("invalid %s %q for %q", FieldBuildWorkers, raw, instanceName)
		}
		inst.BuildWorkers = workers
	}

	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

// Validate checks the record once; later consumers rely on the fields
// without re-checking.
func (i *Instance) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{FieldSettingsDir, i.SettingsDir},
		{FieldLogDir, i.LogDir},
		{FieldResultsDir, i.ResultsDir},
		{FieldHostURL, i.HostURL},
	}
	for _, r := range required {
		if r.value == "" {
			return faults.Configuration("instance %q missing required field %s", i.Name, r.field)
		}
	}
	if i.QueueLimit < 0 {
		return faults.Configuration("instance %q has negative queue limit", i.Name)
	}
	return nil
}

// FlagDir returns the lock-file directory for this instance.
func (i *Instance) FlagDir() string {
	return filepath.Join(i.ResultsDir, "FlagFiles")
}

// Package catalog materializes per-project settings documents from the
// remote registry. Regeneration is whole-catalog replace: every
// existing document is deleted, then one fresh document is written per
// eligible project. The registry stays the sole source of truth at the
// cost of a brief window where no document exists; readers tolerate
// transient absence.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/name2020117/gridflow/internal/config"
	"github.com/name2020117/gridflow/internal/faults"
	"github.com/name2020117/gridflow/internal/registry"
	"github.com/name2020117/gridflow/internal/settings"
)

// Form name prefixes. Each module/processor is one registry form named
// by its catalog entry.
const (
	ModuleFormPrefix        = "module_"
	ProcessorFormPrefix     = "processor_"
	YAMLProcessorFormPrefix = "yamlprocessor_"
)

// GeneralForm is the per-project general form; its completion status
// and instance assignment decide eligibility.
const GeneralForm = "general"

// Project record field names.
const (
	FieldProjectName = "project_name"
	FieldInstance    = "gen_instance"
)

// fileKeySuffix and argsKeySuffix locate the implementation path and
// argument list inside a module/processor record without knowing the
// form's field prefix.
const (
	fileKeySuffix = "_file"
	argsKeySuffix = "_args"
)

// Catalog materializes settings documents for one coordinating
// instance.
type Catalog struct {
	client   registry.Client
	instance *config.Instance
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock overrides the wall clock used for generation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Catalog) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// New creates a Catalog over the projects registry client and this
// instance's validated configuration.
func New(client registry.Client, instance *config.Instance, opts ...Option) *Catalog {
	c := &Catalog{
		client:   client,
		instance: instance,
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Documents lists the materialized settings paths, sorted.
func (c *Catalog) Documents() ([]string, error) {
	entries, err := os.ReadDir(c.instance.SettingsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), settings.FileExt) {
			continue
		}
		if !strings.HasPrefix(entry.Name(), settings.FilePrefix) {
			continue
		}
		paths = append(paths, filepath.Join(c.instance.SettingsDir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Refresh regenerates the whole catalog and returns the written
// document paths. Any configuration or registry fault aborts the
// regeneration; the cycle must not run on a half-trusted snapshot.
func (c *Catalog) Refresh(ctx context.Context) ([]string, error) {
	existing, err := c.Documents()
	if err != nil {
		return nil, err
	}
	for _, path := range existing {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to delete settings document %s: %w", path, err)
		}
	}

	projects, err := c.EligibleProjects(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Regenerating settings catalog",
		"instance", c.instance.Name,
		"projects", len(projects))

	forms, err := c.client.Forms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate registry forms: %w", err)
	}

	now := c.clock()
	written := make([]string, 0, len(projects))
	for _, project := range projects {
		doc, err := c.buildDocument(ctx, forms, project)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", project, err)
		}

		path := filepath.Join(c.instance.SettingsDir, settings.Filename(project))
		c.logger.Info("Writing settings document", "project", project, "path", path)
		if err := settings.Write(path, doc, now); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

// EligibleProjects returns the projects assigned to this instance with
// a complete general form. Partitioning across coordinating instances
// happens here, with no central assignment table.
func (c *Catalog) EligibleProjects(ctx context.Context) ([]string, error) {
	records, err := c.client.Export(ctx, registry.ExportOptions{
		Fields: []string{FieldProjectName, FieldInstance, registry.CompleteField(GeneralForm)},
		Labels: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export project records: %w", err)
	}

	var projects []string
	for _, rec := range records {
		if rec[FieldInstance] != c.instance.Name {
			continue
		}
		if rec[registry.CompleteField(GeneralForm)] != registry.LabelComplete {
			continue
		}
		if name := rec[FieldProjectName]; name != "" {
			projects = append(projects, name)
		}
	}
	return projects, nil
}

// RemoveDisabled deletes the materialized documents of projects whose
// general form is no longer complete, without touching the rest of the
// catalog.
func (c *Catalog) RemoveDisabled(ctx context.Context) error {
	records, err := c.client.Export(ctx, registry.ExportOptions{
		Fields: []string{FieldProjectName, registry.CompleteField(GeneralForm)},
	})
	if err != nil {
		return fmt.Errorf("failed to export project records: %w", err)
	}

	for _, rec := range records {
		if rec[registry.CompleteField(GeneralForm)] == registry.StatusComplete {
			continue
		}
		name := rec[FieldProjectName]
		if name == "" {
			continue
		}

		path := filepath.Join(c.instance.SettingsDir, settings.Filename(name))
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to delete settings document %s: %w", path, err)
		}
		c.logger.Info("Deleted disabled project settings", "project", name, "path", path)
	}
	return nil
}

// buildDocument assembles one project's document from the instance
// defaults plus every enabled module/processor form.
func (c *Catalog) buildDocument(ctx context.Context, forms []string, project string) (*settings.Document, error) {
	doc := &settings.Document{
		ProcessorLib: c.instance.ProcessorLib,
		ModuleLib:    c.instance.ModuleLib,
		ImageDir:     c.instance.ImageDir,
		Attrs: settings.Attrs{
			HostURL:         c.instance.HostURL,
			QueueLimit:      c.instance.QueueLimit,
			JobEmailOptions: c.instance.JobEmailOptions,
		},
		Modules:        []settings.Entry{},
		Processors:     []settings.Entry{},
		YAMLProcessors: []settings.Entry{},
	}

	modules, err := c.collectEntries(ctx, forms, ModuleFormPrefix, project, &doc.Modules)
	if err != nil {
		return nil, err
	}
	processors, err := c.collectEntries(ctx, forms, ProcessorFormPrefix, project, &doc.Processors)
	if err != nil {
		return nil, err
	}
	yamlProcessors, err := c.collectEntries(ctx, forms, YAMLProcessorFormPrefix, project, &doc.YAMLProcessors)
	if err != nil {
		return nil, err
	}

	doc.Projects = []settings.Assignment{{
		Project:        project,
		Modules:        strings.Join(modules, ","),
		Processors:     strings.Join(processors, ","),
		YAMLProcessors: strings.Join(yamlProcessors, ","),
	}}
	return doc, nil
}

// collectEntries walks the forms with the given prefix in enumeration
// order, keeps the enabled ones, and appends their parsed entries.
// Returns the kept entry names for the assignment list.
func (c *Catalog) collectEntries(
	ctx context.Context,
	forms []string,
	prefix string,
	project string,
	out *[]settings.Entry,
) ([]string, error) {
	var names []string
	for _, form := range forms {
		if !strings.HasPrefix(form, prefix) {
			continue
		}
		name := strings.TrimPrefix(form, prefix)

		records, err := c.client.Export(ctx, registry.ExportOptions{
			Forms:   []string{form},
			Records: []string{project},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to export form %s: %w", form, err)
		}
		if len(records) == 0 {
			continue
		}
		rec := records[0]

		if rec[registry.CompleteField(form)] != registry.StatusComplete {
			continue
		}

		entry, err := parseEntry(rec, name)
		if err != nil {
			return nil, err
		}
		*out = append(*out, *entry)
		names = append(names, name)
	}
	return names, nil
}

// parseEntry extracts the implementation path and arguments from a
// module/processor record. The record must carry exactly one field
// ending in "_file"; its prefix locates the sibling "_args" field.
func parseEntry(rec registry.Record, name string) (*settings.Entry, error) {
	var fileKey string
	for key := range rec {
		if !strings.HasSuffix(key, fileKeySuffix) {
			continue
		}
		if fileKey != "" {
			return nil, faults.Configuration("multiple %s keys for %q", fileKeySuffix, name)
		}
		fileKey = key
	}
	if fileKey == "" {
		return nil, faults.Configuration("no %s key for %q", fileKeySuffix, name)
	}

	entry := &settings.Entry{
		Name:     name,
		Filepath: rec[fileKey],
	}

	keyPrefix := strings.TrimSuffix(fileKey, fileKeySuffix)
	if raw := rec[keyPrefix+argsKeySuffix]; raw != "" {
		args, err := parseArguments(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		entry.Arguments = args
	}
	return entry, nil
}

// parseArguments splits "key:value" lines. Values may themselves
// contain colons; only the first one separates.
func parseArguments(raw string) (map[string]string, error) {
	args := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, faults.Configuration("malformed argument line %q", line)
		}
		args[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return args, nil
}

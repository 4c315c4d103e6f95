// Package settings defines the per-project settings document, the
// input unit for every stage invocation. Documents are materialized
// from the remote registry once per cycle and are immutable until the
// next regeneration; edits belong in the registry, never in the files.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/name2020117/gridflow/internal/faults"
)

// FilePrefix and FileExt fix the settings filename convention
// settings-<project>.yaml; the project name round-trips through it.
const (
	FilePrefix = "settings-"
	FileExt    = ".yaml"
)

// requiredKeys are the top-level keys every settings document must
// define. A document missing any of them is rejected wholesale.
var requiredKeys = []string{"projects", "attrs", "modules", "processors", "yamlprocessors"}

// Attrs are the general launcher attributes shared by all stages.
type Attrs struct {
	HostURL         string `yaml:"host"`
	QueueLimit      int    `yaml:"queue_limit"`
	JobEmailOptions string `yaml:"job_email_options"`
}

// Entry describes one module or processor: a unique name within its
// catalog, the path to its implementation, and its keyword arguments.
type Entry struct {
	Name      string            `yaml:"name"`
	Filepath  string            `yaml:"filepath"`
	Arguments map[string]string `yaml:"arguments,omitempty"`
}

// Assignment binds a project to the names of the modules and
// processors it runs, as comma-joined lists.
type Assignment struct {
	Project        string `yaml:"project"`
	Modules        string `yaml:"modules,omitempty"`
	Processors     string `yaml:"processors,omitempty"`
	YAMLProcessors string `yaml:"yamlprocessors,omitempty"`
}

// Document is one materialized per-project settings document.
type Document struct {
	ProcessorLib string `yaml:"processorlib,omitempty"`
	ModuleLib    string `yaml:"modulelib,omitempty"`
	ImageDir     string `yaml:"imagedir,omitempty"`

	Attrs          Attrs        `yaml:"attrs"`
	Modules        []Entry      `yaml:"modules"`
	Processors     []Entry      `yaml:"processors"`
	YAMLProcessors []Entry      `yaml:"yamlprocessors"`
	Projects       []Assignment `yaml:"projects"`
}

// header is written above every document. The timestamp line makes the
// generation time visible without affecting document semantics.
const header = `# This file generated by gridflow manager.
# Edits should be made in the remote registry.
`

// Parse decodes and validates a settings document. Any missing
// required key or malformed YAML is a single configuration fault.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, faults.Wrap(faults.KindConfiguration, err, "malformed settings document")
	}

	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			return nil, faults.Configuration("settings document missing required key %q", key)
		}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, faults.Wrap(faults.KindConfiguration, err, "malformed settings document")
	}
	return &doc, nil
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, faults.Wrap(faults.KindConfiguration, err, "failed to read settings document %s", path)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Write materializes the document at path with the generation
// timestamp header, using a temp file and rename so readers never see
// a partial document.
func Write(path string, doc *Document, generated time.Time) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings document: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString(fmt.Sprintf("# %s\n", generated.Format(time.RFC3339)))
	sb.WriteString("---\n")
	sb.Write(data)

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(sb.String()), 0640); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename settings file: %w", err)
	}
	return nil
}

// Filename returns the settings filename for a project.
func Filename(project string) string {
	return FilePrefix + project + FileExt
}

// ProjectFromPath derives the project name back from a settings path.
func ProjectFromPath(path string) (string, error) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, FilePrefix) || !strings.HasSuffix(base, FileExt) {
		return "", fmt.Errorf("not a settings filename: %s", base)
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, FilePrefix), FileExt), nil
}

// LockPrefix returns the lock-key prefix for a settings path: the base
// filename without extension.
func LockPrefix(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ModuleByName returns the named module entry, or nil.
func (d *Document) ModuleByName(name string) *Entry {
	return entryByName(d.Modules, name)
}

// ProcessorByName returns the named processor entry, or nil.
func (d *Document) ProcessorByName(name string) *Entry {
	return entryByName(d.Processors, name)
}

func entryByName(entries []Entry, name string) *Entry {
	for i := range entries {
		if entries[i].Name == name {
			return &entries[i]
		}
	}
	return nil
}

// Names splits a comma-joined assignment list, dropping empties.
func Names(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

// Package config loads and validates pylogchop's ini configuration
// file, projecting `*:source` sections into types.SourceConfig and the
// `main`/`*:logging` sections into their typed equivalents.
//
// Grounded on original_source/pylogchop/__init__.py's
// configparser-based loader and jsonschema validation, reimplemented
// with gopkg.in/ini.v1 (the wire format is ini, not YAML — the
// teacher's gopkg.in/yaml.v3 does not apply here, see DESIGN.md) and
// github.com/go-playground/validator/v10 struct tags in place of
// jsonschema documents.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"

	"github.com/schlitzer/pylogchop/pkg/types"
)

var validate = validator.New()

// AppLogTarget is the resolved choice between [file:logging] and
// [syslog:logging]; exactly one of File/Syslog is non-nil.
type AppLogTarget struct {
	File   *FileLogging
	Syslog *SyslogLogging
}

// Document is a loaded, merged configuration tree: raw ini, ready for
// section-by-section projection and validation.
type Document struct {
	file *ini.File
}

// Load reads path, then glob-merges any files named by [main].include
// into the same section set. Matches the original's "read main file,
// merge includes" behavior. Append re-parses every source in load
// order, so a key set again by a later-loaded file overrides the value
// an earlier file gave it.
func Load(path string) (*Document, error) {
	f, err := ini.LoadSources(ini.LoadOptions{}, path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if mainSec, err := f.GetSection("main"); err == nil {
		if inc := mainSec.Key("include").String(); inc != "" {
			matches, err := filepath.Glob(inc)
			if err != nil {
				return nil, fmt.Errorf("bad include glob %q: %w", inc, err)
			}
			for _, m := range matches {
				if err := f.Append(m); err != nil {
					return nil, fmt.Errorf("merge included config %s: %w", m, err)
				}
			}
		}
	}

	return &Document{file: f}, nil
}

// Main validates and returns the [main] section. A failure here is
// fatal to startup, per spec §7.
func (d *Document) Main() (Main, error) {
	var m Main
	sec, err := d.file.GetSection("main")
	if err != nil {
		return m, fmt.Errorf("missing [main] section: %w", err)
	}
	if err := sec.MapTo(&m); err != nil {
		return m, fmt.Errorf("parse [main] section: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return m, fmt.Errorf("invalid [main] section: %w", err)
	}
	return m, nil
}

// AppLogTarget validates and returns whichever of [file:logging] /
// [syslog:logging] is present. The two are mutually exclusive, per
// spec §6; having both present is a ConfigInvalid error.
func (d *Document) AppLogTarget() (*AppLogTarget, error) {
	hasFile := d.file.HasSection("file:logging")
	hasSyslog := d.file.HasSection("syslog:logging")

	switch {
	case hasFile && hasSyslog:
		return nil, fmt.Errorf("file:logging and syslog:logging are mutually exclusive")
	case hasFile:
		var cfg FileLogging
		sec, _ := d.file.GetSection("file:logging")
		if err := sec.MapTo(&cfg); err != nil {
			return nil, fmt.Errorf("parse [file:logging]: %w", err)
		}
		if err := validate.Struct(&cfg); err != nil {
			return nil, fmt.Errorf("invalid [file:logging]: %w", err)
		}
		return &AppLogTarget{File: &cfg}, nil
	case hasSyslog:
		var cfg SyslogLogging
		sec, _ := d.file.GetSection("syslog:logging")
		if err := sec.MapTo(&cfg); err != nil {
			return nil, fmt.Errorf("parse [syslog:logging]: %w", err)
		}
		if err := validate.Struct(&cfg); err != nil {
			return nil, fmt.Errorf("invalid [syslog:logging]: %w", err)
		}
		return &AppLogTarget{Syslog: &cfg}, nil
	default:
		return nil, nil // no application log sink configured
	}
}

// SourceSectionNames returns every section whose name ends in
// ":source", in file order.
func (d *Document) SourceSectionNames() []string {
	var names []string
	for _, sec := range d.file.Sections() {
		if strings.HasSuffix(sec.Name(), ":source") {
			names = append(names, sec.Name())
		}
	}
	return names
}

// SourceConfig validates section and projects it into a
// types.SourceConfig. The file path is the section name with the
// trailing ":source" stripped, per spec §6.
func (d *Document) SourceConfig(section string) (*types.SourceConfig, error) {
	sec, err := d.file.GetSection(section)
	if err != nil {
		return nil, fmt.Errorf("missing section %s: %w", section, err)
	}

	var raw SourceSection
	if err := sec.MapTo(&raw); err != nil {
		return nil, fmt.Errorf("parse section %s: %w", section, err)
	}
	if err := validate.Struct(&raw); err != nil {
		return nil, fmt.Errorf("invalid section %s: %w", section, err)
	}

	var anchor *regexp.Regexp
	if raw.Regex != "" {
		// Python's re.match always anchors at position 0 regardless of
		// a leading ^; Go's FindStringSubmatch searches anywhere, so
		// force the same anchoring here rather than trust user input.
		anchor, err = regexp.Compile("^(?:" + raw.Regex + ")")
		if err != nil {
			return nil, fmt.Errorf("section %s: bad anchor regex: %w", section, err)
		}
	}

	template, err := loadTemplate(raw.Template)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", section, err)
	}

	tagsList, tagsDict := projectTags(raw.Tags)

	return &types.SourceConfig{
		FilePath:       strings.TrimSuffix(section, ":source"),
		AnchorRegex:    raw.Regex,
		Anchor:         anchor,
		Template:       template,
		Tags:           raw.Tags,
		TagsList:       tagsList,
		TagsDict:       tagsDict,
		SyslogFacility: types.Facility(raw.SyslogFacility),
		SyslogSeverity: types.Severity(raw.SyslogSeverity),
		SyslogTag:      raw.SyslogTag,
		Encoding:       raw.Encoding,
	}, nil
}

// projectTags splits a comma-separated tags string into the ordered
// list view and the key:value dict view the spec's SourceConfig
// invariants require. A malformed entry (no ":") is dropped from the
// dict, matching the original's behavior, but still appears in the
// list view.
func projectTags(tags string) (list []string, dict map[string]string) {
	dict = map[string]string{}
	for _, tag := range strings.Split(tags, ",") {
		list = append(list, tag)
		kv := strings.SplitN(tag, ":", 2)
		if len(kv) != 2 {
			continue
		}
		dict[kv[0]] = kv[1]
	}
	return list, dict
}

// loadTemplate reads and parses a template file into a generic JSON
// value tree. A read or parse failure is TemplateUnreadable /
// TemplateMalformed, per spec §7 — the caller (Source Worker start)
// treats either as fatal to that one worker only.
func loadTemplate(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	var tree interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	return tree, nil
}

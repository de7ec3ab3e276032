package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// Format identifies a manifest file format.
type Format string

// Supported manifest formats.
const (
	FormatYAML         Format = "yaml"
	FormatTOML         Format = "toml"
	FormatRequirements Format = "requirements"
	FormatSetupCfg     Format = "setup.cfg"
)

// DetectFormat picks a format from the file name.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".txt", ".in":
		return FormatRequirements, nil
	case ".cfg":
		return FormatSetupCfg, nil
	default:
		return "", NewUserError(ErrCodeFormatUnsupported, fmt.Sprintf("unsupported manifest format %q", filepath.Ext(path))).
			WithContext(path).
			WithSuggestion("Use a .yaml, .toml, requirements .txt or setup.cfg manifest")
	}
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewUserError(ErrCodeManifestNotFound, "manifest file not found").
				WithContext(path).
				WithSuggestion("Pass --manifest with the path to your dependency manifest").
				WithUnderlying(err)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	m, err := Parse(data, format)
	if err != nil {
		var userErr *UserError
		if errors.As(err, &userErr) && userErr.Context == "" {
			return nil, userErr.WithContext(path)
		}
		return nil, err
	}
	return m.WithSource(path), nil
}

// Parse decodes manifest data in the given format.
func Parse(data []byte, format Format) (*Manifest, error) {
	switch format {
	case FormatYAML:
		raw := make(map[string]interface{})
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, parseError(format, err)
		}
		return FromRaw(raw)
	case FormatTOML:
		raw := make(map[string]interface{})
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, parseError(format, err)
		}
		return FromRaw(raw)
	case FormatRequirements:
		return parseRequirements(data)
	case FormatSetupCfg:
		return parseSetupCfg(data)
	default:
		return nil, NewUserError(ErrCodeFormatUnsupported, fmt.Sprintf("unsupported manifest format %q", format))
	}
}

func parseError(format Format, err error) *UserError {
	return NewUserError(ErrCodeManifestParse, fmt.Sprintf("failed to parse %s manifest", format)).
		WithSuggestion("Check the file syntax").
		WithUnderlying(err)
}

// FromRaw builds a manifest from a decoded YAML or TOML document:
//
//	upgrade_installers: true
//	packages:
//	  - fastapi
//	  - "uvicorn>=0.30"
//	  - {name: ffmpeg, kind: binary}
//
// Every invalid entry is reported, not only the first.
func FromRaw(raw map[string]interface{}) (*Manifest, error) {
	m, _ := New()

	if v, ok := raw["upgrade_installers"]; ok {
		enabled, ok := v.(bool)
		if !ok {
			return nil, NewUserError(ErrCodeManifestInvalid, "upgrade_installers must be a boolean")
		}
		m.upgradeInstallers = enabled
	}

	packages, ok := raw["packages"]
	if !ok || packages == nil {
		return m, nil
	}
	list, ok := packages.([]interface{})
	if !ok {
		return nil, NewUserError(ErrCodeManifestInvalid, "packages must be a list").
			WithSuggestion("Declare packages as a list of names or {name, kind, version} objects")
	}

	errs := NewErrorList()
	for i, item := range list {
		location := fmt.Sprintf("packages[%d]", i)
		entry, err := parseRawEntry(item)
		if err != nil {
			errs.Add(entryError(err, location))
			continue
		}
		if err := m.Add(entry); err != nil {
			errs.Add(entryError(err, location))
		}
	}
	if errs.HasErrors() {
		return nil, errs.Err()
	}
	return m, nil
}

func parseRawEntry(item interface{}) (Entry, error) {
	switch v := item.(type) {
	case string:
		return Library(v)
	case map[string]interface{}:
		name, ok := v["name"].(string)
		if !ok {
			return Entry{}, fmt.Errorf("package must have a name")
		}
		kindName, err := kindValue(v["kind"])
		if err != nil {
			return Entry{}, err
		}
		kind, err := ParseKind(kindName)
		if err != nil {
			return Entry{}, err
		}
		version, err := stringValue(v["version"])
		if err != nil {
			return Entry{}, err
		}
		return NewEntry(name, kind, version)
	default:
		return Entry{}, fmt.Errorf("package must be a string or object")
	}
}

func kindValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", NewUserError(ErrCodeEntryInvalid, fmt.Sprintf("kind must be a string, got %v", t)).
			WithSuggestion("Use kind: library or kind: binary")
	}
}

// stringValue accepts whole-number versions written unquoted in YAML or
// TOML. Unquoted decimals are rejected: the parser reads 1.10 as 1.1.
func stringValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int, int64, uint64:
		return fmt.Sprint(t), nil
	case float64:
		return "", NewUserError(ErrCodeConstraintInvalid, fmt.Sprintf("version %v must be quoted", t)).
			WithSuggestion(`Quote the version, e.g. version: "1.10"`)
	default:
		return "", NewUserError(ErrCodeConstraintInvalid, "version must be a string").
			WithSuggestion(`Quote the version, e.g. version: "1.10"`)
	}
}

func entryError(err error, location string) *UserError {
	var userErr *UserError
	if errors.As(err, &userErr) {
		if userErr.Context == "" {
			return userErr.WithContext(location)
		}
		return userErr
	}
	return NewUserError(ErrCodeEntryInvalid, err.Error()).
		WithContext(location).
		WithUnderlying(err)
}

// parseRequirements reads a pip requirements file. Option lines (-r, -e,
// --index-url ...) and URL requirements are not dependency declarations
// this tool can check, so they are skipped.
func parseRequirements(data []byte) (*Manifest, error) {
	m, _ := New()
	errs := NewErrorList()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
			continue
		}

		location := fmt.Sprintf("line %d", lineNo)
		entry, err := Library(line)
		if err != nil {
			errs.Add(entryError(err, location))
			continue
		}
		if err := m.Add(entry); err != nil {
			errs.Add(entryError(err, location))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, parseError(FormatRequirements, err)
	}
	if errs.HasErrors() {
		return nil, errs.Err()
	}
	return m, nil
}

// parseSetupCfg reads [options] install_requires as libraries and an
// optional [provisioner] section:
//
//	[provisioner]
//	upgrade_installers = true
//	binaries =
//	    ffmpeg
func parseSetupCfg(data []byte) (*Manifest, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowPythonMultilineValues: true}, data)
	if err != nil {
		return nil, parseError(FormatSetupCfg, err)
	}

	m, _ := New()
	errs := NewErrorList()

	if cfg.Section("options").HasKey("install_requires") {
		for i, req := range splitLines(cfg.Section("options").Key("install_requires").String()) {
			location := fmt.Sprintf("options.install_requires[%d]", i)
			entry, err := Library(req)
			if err != nil {
				errs.Add(entryError(err, location))
				continue
			}
			if err := m.Add(entry); err != nil {
				errs.Add(entryError(err, location))
			}
		}
	}

	section := cfg.Section("provisioner")
	m.upgradeInstallers = section.Key("upgrade_installers").MustBool(false)
	if section.HasKey("binaries") {
		for i, name := range splitList(section.Key("binaries").String()) {
			location := fmt.Sprintf("provisioner.binaries[%d]", i)
			binName, constraint := SplitRequirement(name)
			entry, err := NewEntry(binName, KindBinary, constraint)
			if err != nil {
				errs.Add(entryError(err, location))
				continue
			}
			if err := m.Add(entry); err != nil {
				errs.Add(entryError(err, location))
			}
		}
	}

	if errs.HasErrors() {
		return nil, errs.Err()
	}
	return m, nil
}

// splitLines splits a multi-line ini value. Requirements may contain
// commas, so only newlines separate them.
func splitLines(value string) []string {
	return cleanFields(strings.Split(value, "\n"))
}

// splitList splits a multi-line or comma separated ini value.
func splitList(value string) []string {
	return cleanFields(strings.FieldsFunc(value, func(r rune) bool {
		return r == '\n' || r == ','
	}))
}

func cleanFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" && !strings.HasPrefix(f, "#") {
			out = append(out, f)
		}
	}
	return out
}

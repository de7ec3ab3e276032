package testutil

import (
	"fmt"
	"strings"
)

// TestPackage is a simplified manifest entry for testing.
type TestPackage struct {
	Name    string
	Kind    string
	Version string
}

// TestManifest is a simplified manifest structure for testing.
type TestManifest struct {
	UpgradeInstallers bool
	Packages          []TestPackage
}

// ManifestBuilder builds test manifests.
type ManifestBuilder struct {
	manifest TestManifest
}

// NewManifestBuilder creates a new manifest builder.
func NewManifestBuilder() *ManifestBuilder {
	return &ManifestBuilder{
		manifest: TestManifest{
			Packages: make([]TestPackage, 0),
		},
	}
}

// WithLibrary adds a library entry. An empty version leaves it unconstrained.
func (b *ManifestBuilder) WithLibrary(name, version string) *ManifestBuilder {
	b.manifest.Packages = append(b.manifest.Packages, TestPackage{Name: name, Kind: "library", Version: version})
	return b
}

// WithBinary adds a binary entry.
func (b *ManifestBuilder) WithBinary(name, version string) *ManifestBuilder {
	b.manifest.Packages = append(b.manifest.Packages, TestPackage{Name: name, Kind: "binary", Version: version})
	return b
}

// WithUpgradeInstallers enables the installer self-upgrade flag.
func (b *ManifestBuilder) WithUpgradeInstallers() *ManifestBuilder {
	b.manifest.UpgradeInstallers = true
	return b
}

// Build returns the constructed manifest.
func (b *ManifestBuilder) Build() TestManifest {
	return b.manifest
}

// ToYAML converts the manifest to a YAML document.
func (m TestManifest) ToYAML() string {
	var sb strings.Builder

	if m.UpgradeInstallers {
		sb.WriteString("upgrade_installers: true\n")
	}
	if len(m.Packages) == 0 {
		sb.WriteString("packages: []\n")
		return sb.String()
	}

	sb.WriteString("packages:\n")
	for _, p := range m.Packages {
		sb.WriteString(fmt.Sprintf("  - name: %q\n", p.Name))
		sb.WriteString(fmt.Sprintf("    kind: %s\n", p.Kind))
		if p.Version != "" {
			sb.WriteString(fmt.Sprintf("    version: %q\n", p.Version))
		}
	}
	return sb.String()
}

// ToTOML converts the manifest to a TOML document.
func (m TestManifest) ToTOML() string {
	var sb strings.Builder

	if m.UpgradeInstallers {
		sb.WriteString("upgrade_installers = true\n")
	}
	for _, p := range m.Packages {
		sb.WriteString("\n[[packages]]\n")
		sb.WriteString(fmt.Sprintf("name = %q\n", p.Name))
		sb.WriteString(fmt.Sprintf("kind = %q\n", p.Kind))
		if p.Version != "" {
			sb.WriteString(fmt.Sprintf("version = %q\n", p.Version))
		}
	}
	return sb.String()
}

// ToRequirements renders the library entries as a requirements file.
// Binary entries have no requirements form and are left out.
func (m TestManifest) ToRequirements() string {
	var sb strings.Builder
	for _, p := range m.Packages {
		if p.Kind != "library" {
			continue
		}
		sb.WriteString(p.Name + p.Version + "\n")
	}
	return sb.String()
}

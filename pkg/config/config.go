// Package config loads a kernel's boot-time configuration from a YAML
// document, gated by a semver schema_version field so a future
// incompatible config shape fails loudly at load time instead of
// silently misconfiguring a kernel.
package config

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/mindburn-labs/kernels/pkg/variant"
)

// minSchemaVersion is the oldest schema this loader still accepts.
var minSchemaVersion = semver.MustParse("1.0.0")

// maxSchemaVersion is the exclusive upper bound of accepted schemas; a
// document declaring this version or a newer one was written for a
// kernel build this one hasn't caught up to, and must be rejected
// rather than partially misread.
var maxSchemaVersion = semver.MustParse("2.0.0")

// Document is the on-disk YAML shape of a kernel's boot configuration.
type Document struct {
	SchemaVersion      string `yaml:"schema_version"`
	KernelID           string `yaml:"kernel_id"`
	Variant            string `yaml:"variant"`
	HashAlgorithm      string `yaml:"hash_algorithm"`
	AppendDenialOnHalt bool   `yaml:"append_denial_on_halt"`

	RateLimit struct {
		Enabled bool   `yaml:"enabled"`
		Limit   int64  `yaml:"limit"`
		Window  string `yaml:"window"`
	} `yaml:"rate_limit"`

	Observability struct {
		Enabled      bool   `yaml:"enabled"`
		OTLPEndpoint string `yaml:"otlp_endpoint"`
		Insecure     bool   `yaml:"insecure"`
	} `yaml:"observability"`
}

// Load reads and validates a kernel configuration document from path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates and unmarshals a kernel configuration document from
// raw YAML bytes.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parse: %w", err)
	}

	if err := validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func validate(doc Document) error {
	if doc.SchemaVersion == "" {
		return fmt.Errorf("config: schema_version is required")
	}
	v, err := semver.NewVersion(doc.SchemaVersion)
	if err != nil {
		return fmt.Errorf("config: invalid schema_version %q: %w", doc.SchemaVersion, err)
	}
	if v.LessThan(minSchemaVersion) || !v.LessThan(maxSchemaVersion) {
		return fmt.Errorf("config: schema_version %s is outside supported range [%s, %s)", v, minSchemaVersion, maxSchemaVersion)
	}

	if doc.KernelID == "" {
		return fmt.Errorf("config: kernel_id is required")
	}

	if _, err := variant.For(variant.Name(doc.Variant)); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}

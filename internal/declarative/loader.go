package declarative

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"semlayer/internal/domain"
)

// LoadOptions configures manifest loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadManifest reads a manifest from path, which may be a single JSON or
// YAML file or a manifest directory. The result is not validated.
func LoadManifest(path string) (*domain.Manifest, error) {
	return LoadManifestWithOptions(path, LoadOptions{})
}

// LoadManifestWithOptions is LoadManifest with caller-provided options.
func LoadManifestWithOptions(path string, opts LoadOptions) (*domain.Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if info.IsDir() {
		return LoadDirectory(path, opts)
	}
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified manifest files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	m, err := ParseManifest(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes a manifest body. JSON bodies are the bare manifest
// object. YAML bodies are either the bare manifest or a kind: Manifest
// document. Decoding failures are ValidationErrors.
func ParseManifest(data []byte, opts LoadOptions) (*domain.Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, domain.ErrValidation("manifest is empty")
	}
	if trimmed[0] == '{' {
		return parseJSON(trimmed, opts)
	}

	var doc Document
	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, domain.ErrValidation("parse manifest: %v", err)
	}
	if doc.Kind == "" && doc.APIVersion == "" {
		m := &domain.Manifest{}
		if err := decodeYAML(trimmed, m, opts); err != nil {
			return nil, err
		}
		return m, nil
	}

	var md ManifestDoc
	if err := decodeYAML(trimmed, &md, opts); err != nil {
		return nil, err
	}
	if err := validateDocument("manifest", md.APIVersion, md.Kind, DocManifest); err != nil {
		return nil, err
	}
	return md.manifest(), nil
}

func parseJSON(data []byte, opts LoadOptions) (*domain.Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if !opts.AllowUnknownFields {
		dec.DisallowUnknownFields()
	}
	m := &domain.Manifest{}
	if err := dec.Decode(m); err != nil {
		return nil, domain.ErrValidation("parse manifest: %v", err)
	}
	return m, nil
}

func decodeYAML(data []byte, target interface{}, opts LoadOptions) error {
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, target); err != nil {
			return domain.ErrValidation("parse manifest: %v", err)
		}
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(target); err != nil {
		return domain.ErrValidation("parse manifest: %v", err)
	}
	return nil
}

func (d *ManifestDoc) manifest() *domain.Manifest {
	return &domain.Manifest{
		Catalog:       d.Catalog,
		Schema:        d.Schema,
		Models:        d.Models,
		Relationships: d.Relationships,
		Metrics:       d.Metrics,
	}
}

// LoadDirectory reads a manifest directory:
//
//	manifest.yaml        kind: Manifest (required)
//	relationships.yaml   kind: RelationshipList
//	models/*.yaml        kind: Model, one per file
//	metrics/*.yaml       kind: Metric, one per file
//
// Objects from separate files follow the inline ones, in file name order.
func LoadDirectory(dir string, opts LoadOptions) (*domain.Manifest, error) {
	var root ManifestDoc
	path := filepath.Join(dir, "manifest.yaml")
	ok, err := loadYAMLFile(path, &root, opts)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrValidation("%s: missing manifest.yaml", dir)
	}
	if err := validateDocument(path, root.APIVersion, root.Kind, DocManifest); err != nil {
		return nil, err
	}
	m := root.manifest()

	var rels RelationshipListDoc
	path = filepath.Join(dir, "relationships.yaml")
	if ok, err := loadYAMLFile(path, &rels, opts); err != nil {
		return nil, err
	} else if ok {
		if err := validateDocument(path, rels.APIVersion, rels.Kind, DocRelationships); err != nil {
			return nil, err
		}
		m.Relationships = append(m.Relationships, rels.Relationships...)
	}

	err = eachYAML(filepath.Join(dir, "models"), func(path string) error {
		var doc ModelDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, DocModel); err != nil {
			return err
		}
		m.Models = append(m.Models, doc.Model)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachYAML(filepath.Join(dir, "metrics"), func(path string) error {
		var doc MetricDoc
		if _, err := loadYAMLFile(path, &doc, opts); err != nil {
			return err
		}
		if err := validateDocument(path, doc.APIVersion, doc.Kind, DocMetric); err != nil {
			return err
		}
		m.Metrics = append(m.Metrics, doc.Metric)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// loadYAMLFile reads and unmarshals a YAML file into the given target.
// Returns (false, nil) if file doesn't exist (optional files).
// Returns (false, err) on read/parse errors.
// Returns (true, nil) on success.
func loadYAMLFile(path string, target interface{}, opts LoadOptions) (bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified manifest files
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := decodeYAML(data, target, opts); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

// validateDocument checks the apiVersion and kind fields.
func validateDocument(path string, apiVersion, kind, expectedKind string) error {
	if apiVersion != SupportedAPIVersion {
		return domain.ErrValidation("%s: unsupported apiVersion %q (expected %q)", path, apiVersion, SupportedAPIVersion)
	}
	if kind != expectedKind {
		return domain.ErrValidation("%s: unexpected kind %q (expected %q)", path, kind, expectedKind)
	}
	return nil
}

// eachYAML calls fn for every .yaml or .yml file in dir, sorted by name.
// A missing directory is not an error.
func eachYAML(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := strings.ToLower(filepath.Ext(e.Name())); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := fn(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

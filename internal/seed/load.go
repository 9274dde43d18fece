package seed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/golfkpi/internal/store"
)

// ManifestFile is the manifest name looked up in a seed directory.
const ManifestFile = "manifest.yaml"

// Manifest lists JSON artifact files relative to the manifest.
type Manifest struct {
	Templates []ManifestEntry `yaml:"templates"`
	Snapshots []ManifestEntry `yaml:"snapshots"`
}

// ManifestEntry is one listed file.
type ManifestEntry struct {
	File  string `yaml:"file"`
	Alias string `yaml:"alias,omitempty"`
	Notes string `yaml:"notes,omitempty"`
}

// LoadDir collects the artifacts of a seed directory: manifest entries
// first, in listed order, then CUE artifacts in declaration order.
// Templates always precede snapshots within each source.
func LoadDir(dir string) ([]Artifact, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed directory: not a directory: %s", dir)
	}

	var out []Artifact

	manifestPath := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		arts, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		out = append(out, arts...)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("seed manifest: %w", err)
	}

	cueFiles, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("seed directory: %w", err)
	}
	if len(cueFiles) > 0 {
		arts, err := LoadCUE(dir)
		if err != nil {
			return nil, err
		}
		out = append(out, arts...)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("seed directory %s: no %s and no CUE files", dir, ManifestFile)
	}
	return out, nil
}

// LoadManifest reads a YAML manifest and the JSON files it lists.
func LoadManifest(path string) ([]Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	var out []Artifact
	add := func(kind store.ContentKind, entries []ManifestEntry) error {
		for i, e := range entries {
			if e.File == "" {
				return fmt.Errorf("manifest %s: %s[%d]: file is required", path, kind, i)
			}
			if kind == store.KindSnapshot && e.Alias != "" {
				return fmt.Errorf("manifest %s: %s: aliases apply to templates only", path, e.File)
			}
			src := filepath.Join(base, e.File)
			raw, err := os.ReadFile(src)
			if err != nil {
				return fmt.Errorf("manifest %s: %w", path, err)
			}
			out = append(out, Artifact{Kind: kind, Source: src, Raw: raw, Alias: e.Alias, Notes: e.Notes})
		}
		return nil
	}
	if err := add(store.KindTemplate, m.Templates); err != nil {
		return nil, err
	}
	if err := add(store.KindSnapshot, m.Snapshots); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadCUE builds the CUE package in dir and exports each value under the
// top-level "template" and "snapshot" fields as JSON. Template labels
// become aliases.
func LoadCUE(dir string) ([]Artifact, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("load CUE %s: no instances", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("load CUE %s: %w", dir, inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("build CUE %s: %w", dir, err)
	}

	var out []Artifact
	for _, section := range []struct {
		field string
		kind  store.ContentKind
	}{
		{"template", store.KindTemplate},
		{"snapshot", store.KindSnapshot},
	} {
		v := value.LookupPath(cue.ParsePath(section.field))
		if !v.Exists() {
			continue
		}
		iter, err := v.Fields()
		if err != nil {
			return nil, fmt.Errorf("CUE %s: %s: %w", dir, section.field, err)
		}
		var batch []Artifact
		for iter.Next() {
			label := iter.Selector().Unquoted()
			src := fmt.Sprintf("%s#%s.%q", dir, section.field, label)
			if err := iter.Value().Validate(cue.Concrete(true)); err != nil {
				return nil, fmt.Errorf("CUE %s: %w", src, err)
			}
			raw, err := iter.Value().MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("CUE %s: export: %w", src, err)
			}
			a := Artifact{Kind: section.kind, Source: src, Raw: raw}
			if section.kind == store.KindTemplate {
				a.Alias = label
			}
			batch = append(batch, a)
		}
		out = append(out, batch...)
	}
	return out, nil
}

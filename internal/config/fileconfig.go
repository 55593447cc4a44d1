package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// EmbeddingPolicyFile is the subset of rcrt.yaml read directly from disk
// rather than through the viper singleton: the should_embed denylist
// (spec §4.2) and the temporal/tag edge thresholds (§3). The serve
// command loads it from the path given by its policy-file flag, separately
// from the viper-backed Config.
//
// This mirrors beads's LoadLocalConfig: read the file directly with
// os.ReadFile, return a zero-value struct (not nil, not an error) when
// the file is absent or malformed, since the caller almost always has a
// sane default behavior either way.
type EmbeddingPolicyFile struct {
	SchemaDenylist      []string `yaml:"schema_denylist"`
	TemporalWindow       string   `yaml:"temporal_window"`
	TagEdgeMinShared     int      `yaml:"tag_edge_min_shared"`
	SemanticEdgeTopM     int      `yaml:"semantic_edge_top_m"`
	SemanticEdgeThreshold float64 `yaml:"semantic_edge_threshold"`
}

// LoadEmbeddingPolicyFile reads path directly. Returns an empty struct
// (not an error) if the file doesn't exist or fails to parse, so callers
// can always apply their own defaults on top of it.
func LoadEmbeddingPolicyFile(path string) *EmbeddingPolicyFile {
	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return &EmbeddingPolicyFile{}
	}
	var f EmbeddingPolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return &EmbeddingPolicyFile{}
	}
	return &f
}

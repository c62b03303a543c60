// Package seed loads the built-in review stage configuration and generates
// demo data for development environments.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"gopkg.in/yaml.v3"
)

//go:embed stages.yml
var builtInStages []byte

// StageBlock lists the ordered review stages for one organization type and
// resource type.
type StageBlock struct {
	OrganizationType models.OrganizationType   `yaml:"organization_type"`
	ResourceType     models.ReviewResourceType `yaml:"resource_type"`
	Stages           []StageEntry              `yaml:"stages"`
}

type StageEntry struct {
	Type    string `yaml:"type"`
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LoadStageConfig decodes a stage configuration document and checks that
// every block names known types and unique stages.
func LoadStageConfig(r io.Reader) ([]StageBlock, error) {
	var blocks []StageBlock
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&blocks); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode stage config: %w", err)
	}

	seen := make(map[string]bool)
	for i, b := range blocks {
		if !b.OrganizationType.Valid() {
			return nil, fmt.Errorf("block %d: unknown organization type %q", i, b.OrganizationType)
		}
		if !b.ResourceType.Valid() {
			return nil, fmt.Errorf("block %d: unknown resource type %q", i, b.ResourceType)
		}
		for _, s := range b.Stages {
			typ := strings.TrimSpace(s.Type)
			if typ == "" {
				return nil, fmt.Errorf("block %d: stage type is required", i)
			}
			key := string(b.OrganizationType) + "/" + string(b.ResourceType) + "/" + typ
			if seen[key] {
				return nil, fmt.Errorf("duplicate stage %s", key)
			}
			seen[key] = true
		}
	}
	return blocks, nil
}

// BuiltInStageConfig returns the configuration shipped with the binary.
func BuiltInStageConfig() ([]StageBlock, error) {
	return LoadStageConfig(bytes.NewReader(builtInStages))
}

// ApplyStageConfig upserts every configured stage. Applying the same
// configuration twice leaves the table unchanged.
func ApplyStageConfig(ctx context.Context, reviews *service.ReviewService, blocks []StageBlock) (int, error) {
	applied := 0
	for _, b := range blocks {
		for i, s := range b.Stages {
			_, err := reviews.ConfigureStage(ctx, service.StageConfigInput{
				OrganizationType: b.OrganizationType,
				ResourceType:     b.ResourceType,
				StageType:        s.Type,
				Name:             s.Name,
				Position:         i + 1,
				Enabled:          s.Enabled,
			})
			if err != nil {
				return applied, fmt.Errorf("configure %s/%s/%s: %w", b.OrganizationType, b.ResourceType, s.Type, err)
			}
			applied++
		}
	}
	return applied, nil
}

package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/voxelray/voxelray/octree"
)

// buildConfig holds the build parameters, optionally loaded from a YAML
// file.
type buildConfig struct {
	Levels            int    `yaml:"levels"`
	AggregationPasses int    `yaml:"aggregation_passes"`
	PaletteSize       int    `yaml:"palette_size"`
	CachePath         string `yaml:"cache_path"`
}

func defaultConfig() buildConfig {
	return buildConfig{
		Levels:            9,
		AggregationPasses: 3,
		PaletteSize:       64,
	}
}

func loadConfig(path string) (buildConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parsing config")
	}
	return cfg, nil
}

func (c buildConfig) options() octree.Options {
	return octree.Options{Levels: c.Levels, AggregationPasses: c.AggregationPasses}
}

// cachePath derives the cache file path next to the source unless the config
// overrides it.
func (c buildConfig) cachePath(source string) string {
	if c.CachePath != "" {
		return c.CachePath
	}
	if i := strings.LastIndexByte(source, '.'); i > 0 {
		return source[:i] + ".vxc"
	}
	return source + ".vxc"
}

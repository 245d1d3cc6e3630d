package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/dvk/api"
	"github.com/agentic-research/dvk/internal/indexcache"
)

// defaultDir is where dvk keeps its config and cache unless told otherwise.
func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}
	return filepath.Join(home, ".agentic-research", "dvk"), nil
}

// loadConfig reads path, or the default config file when path is empty.
// A missing default file yields the defaults; a missing explicit file is an
// error.
func loadConfig(path string) (*api.Config, error) {
	base, err := defaultDir()
	if err != nil {
		return nil, err
	}
	explicit := path != ""
	if !explicit {
		path = filepath.Join(base, "dvk.hcl")
	}

	cfg := &api.Config{}
	if _, err := os.Stat(path); err == nil || explicit {
		if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if cfg.Cache == nil {
		cfg.Cache = &api.CacheConfig{}
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(base, "cache")
	}
	if cfg.Sort == nil {
		cfg.Sort = &api.SortConfig{}
	}
	if _, err := cacheFlavour(cfg.Cache.Flavour); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cacheFlavour(name string) (indexcache.Flavour, error) {
	switch name {
	case "", "dvk":
		return indexcache.FlavourDVK, nil
	case "dmf":
		return indexcache.FlavourDMF, nil
	}
	return 0, fmt.Errorf("unknown cache flavour %q", name)
}

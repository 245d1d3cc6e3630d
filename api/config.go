package api

// Config is the dvk configuration file (HCL).
//
//	roots = ["/srv/media"]
//
//	cache {
//	  dir               = "/home/me/.agentic-research/dvk/cache"
//	  flavour           = "dmf"
//	  max_idle_sessions = 10
//	}
//
//	sort {
//	  key               = "time"
//	  group_by_sequence = true
//	}
type Config struct {
	// Roots are the directory trees to catalog.
	Roots []string `hcl:"roots,optional"`
	// Cache configures the directory snapshot cache.
	Cache *CacheConfig `hcl:"cache,block"`
	// Sort holds the default ordering for list output.
	Sort *SortConfig `hcl:"sort,block"`
}

// CacheConfig configures the index cache.
type CacheConfig struct {
	// Dir holds the index list, lock and snapshots.
	Dir string `hcl:"dir,optional"`
	// Disabled parses every directory directly.
	Disabled bool `hcl:"disabled,optional"`
	// NoRefresh trusts snapshots without checking the files on disk.
	NoRefresh bool `hcl:"no_refresh,optional"`
	// Flavour is "dvk" (default) or "dmf".
	Flavour string `hcl:"flavour,optional"`
	// MaxIdleSessions evicts DMF-flavour slots unread for this many sessions.
	MaxIdleSessions int `hcl:"max_idle_sessions,optional"`
}

// SortConfig mirrors the sort options of the list command.
type SortConfig struct {
	Key             string `hcl:"key,optional"`
	GroupByArtist   bool   `hcl:"group_by_artist,optional"`
	GroupBySequence bool   `hcl:"group_by_sequence,optional"`
	GroupBySection  bool   `hcl:"group_by_section,optional"`
	Reverse         bool   `hcl:"reverse,optional"`
}

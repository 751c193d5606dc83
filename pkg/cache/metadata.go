package cache

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/lo"
)

// FormatVersion is the on-disk schema version of metadata.json.
const FormatVersion = 1

// MetadataCache is the cached catalog of installable JDK packages.
type MetadataCache struct {
	Version       int                          `json:"version"`
	LastUpdated   time.Time                    `json:"last_updated"`
	Distributions map[string]DistributionCache `json:"distributions"`
	// SynonymMap maps alternative distribution names to their canonical name.
	SynonymMap map[string]string `json:"synonym_map,omitempty"`
}

// DistributionCache holds every package known for one distribution.
type DistributionCache struct {
	Distribution string    `json:"distribution"`
	DisplayName  string    `json:"display_name"`
	Packages     []Package `json:"packages"`
}

// Package describes one downloadable archive.
type Package struct {
	ID                  string `json:"id"`
	Distribution        string `json:"distribution"`
	Version             string `json:"version"`
	DistributionVersion string `json:"distribution_version,omitempty"`
	Architecture        string `json:"architecture"`
	OperatingSystem     string `json:"operating_system"`
	PackageType         string `json:"package_type"`
	ArchiveType         string `json:"archive_type"`
	DownloadURL         string `json:"download_url,omitempty"`
	Checksum            string `json:"checksum,omitempty"`
	ChecksumType        string `json:"checksum_type,omitempty"`
	Size                int64  `json:"size,omitempty"`
	LibCType            string `json:"lib_c_type,omitempty"`
	JavaFXBundled       bool   `json:"javafx_bundled"`
	TermOfSupport       string `json:"term_of_support,omitempty"`
}

// New returns an empty cache stamped with now.
func New(now time.Time) *MetadataCache {
	return &MetadataCache{
		Version:       FormatVersion,
		LastUpdated:   now.UTC(),
		Distributions: map[string]DistributionCache{},
		SynonymMap:    map[string]string{},
	}
}

// FromPackages groups packages by distribution into a fresh cache.
func FromPackages(packages []Package, now time.Time) *MetadataCache {
	c := New(now)
	for dist, pkgs := range lo.GroupBy(packages, func(p Package) string {
		return strings.ToLower(p.Distribution)
	}) {
		sort.SliceStable(pkgs, func(i, j int) bool { return newerVersion(pkgs[i].Version, pkgs[j].Version) })
		c.Distributions[dist] = DistributionCache{
			Distribution: dist,
			DisplayName:  pkgs[0].Distribution,
			Packages:     pkgs,
		}
	}
	return c
}

// IsStale reports whether the cache is older than maxAge. A timestamp in the future counts as stale.
func (c *MetadataCache) IsStale(maxAge time.Duration, now time.Time) bool {
	elapsed := now.Sub(c.LastUpdated)
	return elapsed < 0 || elapsed > maxAge
}

// TotalPackages counts packages across all distributions.
func (c *MetadataCache) TotalPackages() int {
	return lo.SumBy(lo.Values(c.Distributions), func(d DistributionCache) int {
		return len(d.Packages)
	})
}

// CanonicalName resolves a distribution synonym. Unknown names are returned lowercased.
func (c *MetadataCache) CanonicalName(name string) string {
	name = strings.ToLower(name)
	if canonical, ok := c.SynonymMap[name]; ok {
		return canonical
	}
	return name
}

// HasVersion reports whether any distribution offers version.
func (c *MetadataCache) HasVersion(version string) bool {
	for _, dist := range c.Distributions {
		if lo.ContainsBy(dist.Packages, func(p Package) bool { return p.Version == version }) {
			return true
		}
	}
	return false
}

// Find returns the packages of distribution whose version equals version or starts
// with version followed by a dot or plus, filtered to os and arch when they are set.
func (c *MetadataCache) Find(distribution, version, os, arch string) []Package {
	dist, ok := c.Distributions[c.CanonicalName(distribution)]
	if !ok {
		return nil
	}
	return lo.Filter(dist.Packages, func(p Package, _ int) bool {
		if os != "" && p.OperatingSystem != os {
			return false
		}
		if arch != "" && p.Architecture != arch {
			return false
		}
		return versionMatches(p.Version, version)
	})
}

// newerVersion orders a before b when a is the higher version. Build metadata such as
// "+13" breaks ties; unparsable versions compare as strings.
func newerVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return a > b
	}
	if cmp := va.Compare(vb); cmp != 0 {
		return cmp > 0
	}
	return buildNumber(va.Metadata()) > buildNumber(vb.Metadata())
}

func buildNumber(metadata string) int {
	n, err := strconv.Atoi(metadata)
	if err != nil {
		return -1
	}
	return n
}

func versionMatches(candidate, requested string) bool {
	if candidate == requested {
		return true
	}
	return strings.HasPrefix(candidate, requested+".") || strings.HasPrefix(candidate, requested+"+")
}

// DistributionNames lists the cached distributions in sorted order.
func (c *MetadataCache) DistributionNames() []string {
	names := lo.Keys(c.Distributions)
	sort.Strings(names)
	return names
}

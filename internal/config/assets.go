package config

import "strings"

// AssetNaming selects how materialized image files are named.
type AssetNaming string

const (
	// AssetNamingRandom names files <unix-millis>-<random token>.<ext>.
	AssetNamingRandom AssetNaming = "random"
	// AssetNamingContent names files by the sha256 of the source reference so reruns reuse them.
	AssetNamingContent AssetNaming = "content"
)

// NormalizeAssetNaming returns the typed naming mode, or empty string for unknown input.
func NormalizeAssetNaming(raw string) AssetNaming {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AssetNamingRandom):
		return AssetNamingRandom
	case string(AssetNamingContent), "hash":
		return AssetNamingContent
	default:
		return ""
	}
}

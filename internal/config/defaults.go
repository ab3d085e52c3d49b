// ABOUTME: Centralized configuration defaults for feedsync
// ABOUTME: Contains magic numbers and hardcoded values for display, storage, and serving

package config

import "time"

// HTTP settings
const (
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultRefreshTimeout = 45 * time.Second
	DefaultHTTPAddr       = "127.0.0.1:8080"
)

// Display settings
const (
	DefaultListLimit = 20
	DisplayIDLength  = 8
	SeparatorWidth   = 60
	ExcerptLength    = 120
	DateFormatShort  = "02 Jan 06 15:04 MST"
	DateFormatLong   = "Mon, 02 Jan 2006 15:04 MST"
)

// Storage settings
const (
	DBFilename      = "feedsync.db"
	DefaultDirPerms = 0755
)

// Watch settings
const (
	DefaultWatchInterval = 15 * time.Minute
)

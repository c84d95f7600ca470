package config

// Build metadata injected at build time via ldflags.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/mchestr/plex-wrapped-sub005/internal/config.Version=v1.2.3' \
//	                   -X 'github.com/mchestr/plex-wrapped-sub005/internal/config.Commit=abc1234'"
var (
	Version = "dev"
	Commit  = "unknown"
)

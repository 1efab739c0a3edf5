// Package serverconfig loads the reactor's listen address and document
// roots from an ini file, the same library the teacher uses for its
// object-dictionary/EDS parsing (pkg/od/parser.go, pkg/od/parser_v1.go).
package serverconfig

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Config holds everything cmd/awsd needs to start a reactor.Loop.
type Config struct {
	ListenAddr    string
	StaticPrefix  string
	DynamicPrefix string
	StaticRoot    string
	DynamicRoot   string
	BufferSize    int
}

// Default returns a zero-config Config usable without any ini file on
// disk: listen on :8888, rooted at ./www (matching the reference
// server's working-directory-rooted "./" + path resolution, where
// "/static/..." and "/dynamic/..." are just substrings of the request
// path, not separately rooted directories) with an 8KiB receive buffer.
func Default() Config {
	return Config{
		ListenAddr:    ":8888",
		StaticPrefix:  "/static/",
		DynamicPrefix: "/dynamic/",
		StaticRoot:    "www",
		DynamicRoot:   "www",
		BufferSize:    8192,
	}
}

// LoadFile reads a "[server]" section from the ini file at path, falling
// back to Default's values for any key the file omits.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	edsFile, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("serverconfig: load %s: %w", path, err)
	}

	section, err := edsFile.GetSection("server")
	if err != nil {
		// No [server] section at all; the defaults stand.
		return cfg, nil
	}

	if key, err := section.GetKey("listen_addr"); err == nil {
		cfg.ListenAddr = key.String()
	}
	if key, err := section.GetKey("static_prefix"); err == nil {
		cfg.StaticPrefix = key.String()
	}
	if key, err := section.GetKey("dynamic_prefix"); err == nil {
		cfg.DynamicPrefix = key.String()
	}
	if key, err := section.GetKey("static_root"); err == nil {
		cfg.StaticRoot = key.String()
	}
	if key, err := section.GetKey("dynamic_root"); err == nil {
		cfg.DynamicRoot = key.String()
	}
	if key, err := section.GetKey("buffer_size"); err == nil {
		if n, err := key.Int(); err == nil && n > 0 {
			cfg.BufferSize = n
		}
	}

	return cfg, nil
}

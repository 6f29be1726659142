// Package config describes the window and rendering settings of the program.
//
// Settings start from Default, may be overridden by a TOML file and finally by
// command line flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Names of the supported rendering backends.
const (
	BackendVulkan = "vulkan"
	BackendOpenGL = "opengl"
)

// Config holds everything the device and the window need at creation time.
type Config struct {
	// Fullscreen makes the window cover the primary monitor using its
	// current video mode.
	Fullscreen bool `toml:"fullscreen"`

	// InitialWidth and InitialHeight are the window size in screen
	// coordinates when not in fullscreen mode.
	InitialWidth  int `toml:"initial_width"`
	InitialHeight int `toml:"initial_height"`

	// Vsync only affects the OpenGL backend. The Vulkan backend picks its
	// present mode from what the surface supports.
	Vsync bool `toml:"vsync"`

	// Backend is one of BackendVulkan or BackendOpenGL.
	Backend string `toml:"backend"`

	// LogPath is the file logs are appended to. Empty means stderr.
	LogPath string `toml:"log_path"`

	// LogVerbose enables debug level logging.
	LogVerbose bool `toml:"log_verbose"`
}

// Errors returned by Validate.
var (
	ErrInvalidSize    = errors.New("window size must be positive")
	ErrUnknownBackend = errors.New("unknown backend")
)

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		InitialWidth:  1024,
		InitialHeight: 768,
		Vsync:         true,
		Backend:       BackendVulkan,
	}
}

// Parse decodes TOML data on top of the defaults. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		return cfg, err
	}

	return cfg, nil
}

// Load reads and parses the TOML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// FromArgs builds a Config out of command line arguments. The -config flag
// names a TOML file which is applied first. Flags given explicitly override
// values from the file.
func FromArgs(name string, args []string) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	var (
		path  string
		flags = Default()
	)
	fs.StringVar(&path, "config", "", "Path to a TOML configuration file")
	flags.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return Default(), err
	}

	cfg := Default()
	if path != "" {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		cfg.override(f.Name, flags)
	})

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RegisterFlags binds the fields of c to flags in fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.Fullscreen, "fullscreen", c.Fullscreen, "Cover the primary monitor")
	fs.IntVar(&c.InitialWidth, "width", c.InitialWidth, "Window width")
	fs.IntVar(&c.InitialHeight, "height", c.InitialHeight, "Window height")
	fs.BoolVar(&c.Vsync, "vsync", c.Vsync, "Wait for vertical sync (OpenGL only)")
	fs.StringVar(&c.Backend, "backend", c.Backend, "Rendering backend: vulkan or opengl")
	fs.StringVar(&c.LogPath, "log", c.LogPath, "Append logs to this file instead of stderr")
	fs.BoolVar(&c.LogVerbose, "verbose", c.LogVerbose, "Enable debug logging")
}

func (c *Config) override(flagName string, from Config) {
	switch flagName {
	case "fullscreen":
		c.Fullscreen = from.Fullscreen
	case "width":
		c.InitialWidth = from.InitialWidth
	case "height":
		c.InitialHeight = from.InitialHeight
	case "vsync":
		c.Vsync = from.Vsync
	case "backend":
		c.Backend = from.Backend
	case "log":
		c.LogPath = from.LogPath
	case "verbose":
		c.LogVerbose = from.LogVerbose
	}
}

// Validate checks that the window can be created with these settings.
func (c Config) Validate() error {
	if !c.Fullscreen && (c.InitialWidth <= 0 || c.InitialHeight <= 0) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.InitialWidth, c.InitialHeight)
	}

	switch c.Backend {
	case BackendVulkan, BackendOpenGL:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	return nil
}

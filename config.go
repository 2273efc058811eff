package vkboot

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// Duration is a time.Duration that reads and writes JSON as "1s", "250ms".
// Plain numbers are taken as nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "duration %q", v)
		}
		*d = Duration(parsed)
	default:
		return errors.Errorf("invalid duration %s", b)
	}
	return nil
}

// Config holds the settings of one run. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	AppName string `json:"app_name"`
	Width   uint32 `json:"width"`
	Height  uint32 `json:"height"`

	// Validation enables validation layers and the debug messenger.
	Validation bool `json:"validation"`

	FenceTimeout   Duration `json:"fence_timeout"`
	AcquireTimeout Duration `json:"acquire_timeout"`

	// Shaders are compiled (if stale) and loaded as shader modules at init.
	// Relative paths resolve against the working directory.
	Shaders []string `json:"shaders"`
	// ShaderExt is appended to a shader source path to name its artifact.
	ShaderExt string `json:"shader_ext"`

	// MaxFrames stops the loop after that many iterations. Zero runs until
	// the window closes.
	MaxFrames uint64 `json:"max_frames"`

	// Window selects the window system: "glfw" or "sdl".
	Window string `json:"window"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AppName:        "vkboot",
		Width:          1280,
		Height:         700,
		Validation:     defaultValidation,
		FenceTimeout:   Duration(time.Second),
		AcquireTimeout: Duration(time.Second),
		Shaders:        []string{"shaders/triangle.vert", "shaders/triangle.frag"},
		ShaderExt:      ".spv",
		Window:         "glfw",
	}
}

// LoadConfig reads a JSON file over DefaultConfig. Keys absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	var problems []string
	if c.AppName == "" {
		problems = append(problems, "app_name is empty")
	}
	if c.Width == 0 || c.Height == 0 {
		problems = append(problems, "width and height must be positive")
	}
	if c.FenceTimeout <= 0 {
		problems = append(problems, "fence_timeout must be positive")
	}
	if c.AcquireTimeout <= 0 {
		problems = append(problems, "acquire_timeout must be positive")
	}
	if c.ShaderExt == "" {
		problems = append(problems, "shader_ext is empty")
	}
	switch c.Window {
	case "glfw", "sdl":
	default:
		problems = append(problems, "window must be glfw or sdl")
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Extent is the requested surface size.
func (c Config) Extent() gpu.Extent2D {
	return gpu.Extent2D{Width: c.Width, Height: c.Height}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cyclopcam/yorubaocr/pkg/nn"
	"github.com/cyclopcam/yorubaocr/pkg/resize"
)

const DefaultFilename = "yorubaocr.json"

type Model struct {
	Path        string `json:"path"`        // eg models/yoruba.onnx. The JSON config must sit next to it (models/yoruba.json)
	Threading   string `json:"threading"`   // "single" or "parallel". Default is "parallel".
	OnnxLibrary string `json:"onnxLibrary"` // Path to the ONNX Runtime shared library (eg /usr/lib/libonnxruntime.so). Empty = platform default.
}

type Resize struct {
	Backend string        `json:"backend"` // One of resize.Scalers(). Empty = resize.DefaultBackend.
	Format  resize.Format `json:"format"`  // "jpeg" or "png". Empty = jpeg.
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type Storage struct {
	Filesystem *StorageFS  `json:"filesystem"`
	GCS        *StorageGCS `json:"gcs"`
}

type StorageFS struct {
	Root string `json:"root"` // Path to the directory where uploaded and captured images are kept
}

type StorageGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Prefix string `json:"prefix"` // Prepended to every object name, eg "yorubaocr/"
}

// Permissions that the server grants to its clients.
// A denied permission behaves exactly like a user refusing access on a phone.
type Permissions struct {
	MediaLibrary bool `json:"mediaLibrary"`
	Camera       bool `json:"camera"`
}

type Config struct {
	Listen            string      `json:"listen"`            // eg ":8080"
	Model             Model       `json:"model"`             // The prediction model
	Resize            Resize      `json:"resize"`            // Resize backend and intermediate format
	Storage           Storage     `json:"storage"`           // Where uploaded images are kept
	Permissions       Permissions `json:"permissions"`       // What clients may do
	CameraSnapshotURL string      `json:"cameraSnapshotURL"` // If set, a capture request without an image fetches a JPEG from here
	HistorySize       int         `json:"historySize"`       // Number of results to remember
	Strict            bool        `json:"strict"`            // Crash on internal pipeline errors, instead of reporting them. For development.
	RateLimit         int         `json:"rateLimit"`         // Max mutating requests per IP per minute. Zero = no limit.
	MaxUploadMB       int         `json:"maxUploadMB"`       // Max size of an uploaded image
}

const RateLimitWindow = time.Minute

// Return a config with all the defaults filled in
func Default() *Config {
	return &Config{
		Listen:      ":8080",
		Model:       Model{Threading: "parallel"},
		HistorySize: 50,
		RateLimit:   60,
		MaxUploadMB: 20,
	}
}

func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := Default()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Invalid config %v: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model.path must be set")
	}
	if _, err := c.ThreadingMode(); err != nil {
		return err
	}
	switch c.Resize.Format {
	case "", resize.FormatJPEG, resize.FormatPNG:
	default:
		return fmt.Errorf("resize.format must be 'jpeg' or 'png', not '%v'", c.Resize.Format)
	}
	if (c.Storage.Filesystem == nil) == (c.Storage.GCS == nil) {
		return fmt.Errorf("Exactly one of the storage options must be configured (i.e. either 'filesystem' or 'gcs')")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("maxUploadMB must be positive")
	}
	return nil
}

func (c *Config) ThreadingMode() (nn.ThreadingMode, error) {
	switch c.Model.Threading {
	case "", "parallel":
		return nn.ThreadingModeParallel, nil
	case "single":
		return nn.ThreadingModeSingle, nil
	}
	return nn.ThreadingModeSingle, fmt.Errorf("model.threading must be 'single' or 'parallel', not '%v'", c.Model.Threading)
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

package modelconfig

import (
	"errors"
	"fmt"
	"time"
)

// Kind selects which backend implementation a config describes.
type Kind string

const (
	// KindLocal runs detection with a local ONNX model.
	KindLocal Kind = "local"
	// KindRemote calls an OpenAI-compatible vision endpoint.
	KindRemote Kind = "remote"
)

// Sentinel errors for store operations.
var (
	ErrInvalid  = errors.New("model config invalid")
	ErrNotFound = errors.New("model config not found")
)

// LocalParams configures a local detector backend.
type LocalParams struct {
	// WeightsPath is the path to the ONNX model weights.
	WeightsPath string `json:"weightsPath"`
	// ClassNames is the ordered class vocabulary; the detection class index
	// is an index into this slice.
	ClassNames []string `json:"classNames"`
}

// RemoteParams configures a remote vision model backend.
type RemoteParams struct {
	// Endpoint is the base URL of an OpenAI-compatible API.
	Endpoint string `json:"endpoint"`
	// APIKey authenticates requests to the endpoint.
	APIKey string `json:"apiKey"`
	// ModelName is the model identifier sent with each request.
	ModelName string `json:"modelName"`
	// PromptTemplate is the user prompt sent alongside the image.
	PromptTemplate string `json:"promptTemplate"`
	// ClassNames optionally pins the class vocabulary; when set it is
	// enumerated in the system prompt and written to classes.txt.
	ClassNames []string `json:"classNames,omitempty"`
	// MaxInFlight bounds concurrent requests; 0 means the default (4).
	MaxInFlight int `json:"maxInFlight,omitempty"`
}

// Config is one named backend configuration. Exactly one of Local/Remote is
// populated, matching Kind.
type Config struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Kind      Kind          `json:"kind"`
	Local     *LocalParams  `json:"local,omitempty"`
	Remote    *RemoteParams `json:"remote,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ClassNames returns the class vocabulary for either kind; may be empty for
// remote configs.
func (c *Config) ClassNames() []string {
	switch c.Kind {
	case KindLocal:
		if c.Local != nil {
			return c.Local.ClassNames
		}
	case KindRemote:
		if c.Remote != nil {
			return c.Remote.ClassNames
		}
	}
	return nil
}

// Validate enforces the kind-specific invariants. It runs on every add and
// update.
func Validate(c *Config) error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}

	switch c.Kind {
	case KindLocal:
		if c.Local == nil {
			return fmt.Errorf("%w: local params are required for kind %q", ErrInvalid, c.Kind)
		}
		if c.Remote != nil {
			return fmt.Errorf("%w: remote params not allowed for kind %q", ErrInvalid, c.Kind)
		}
		if c.Local.WeightsPath == "" {
			return fmt.Errorf("%w: weightsPath is required", ErrInvalid)
		}
		if len(c.Local.ClassNames) == 0 {
			return fmt.Errorf("%w: classNames must be non-empty for local configs", ErrInvalid)
		}
		for i, name := range c.Local.ClassNames {
			if name == "" {
				return fmt.Errorf("%w: classNames[%d] is empty", ErrInvalid, i)
			}
		}
	case KindRemote:
		if c.Remote == nil {
			return fmt.Errorf("%w: remote params are required for kind %q", ErrInvalid, c.Kind)
		}
		if c.Local != nil {
			return fmt.Errorf("%w: local params not allowed for kind %q", ErrInvalid, c.Kind)
		}
		if c.Remote.Endpoint == "" {
			return fmt.Errorf("%w: endpoint is required", ErrInvalid)
		}
		if c.Remote.APIKey == "" {
			return fmt.Errorf("%w: apiKey must be non-empty for remote configs", ErrInvalid)
		}
		if c.Remote.ModelName == "" {
			return fmt.Errorf("%w: modelName is required", ErrInvalid)
		}
		if c.Remote.MaxInFlight < 0 {
			return fmt.Errorf("%w: maxInFlight must not be negative", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, c.Kind)
	}

	return nil
}

// Store persists named backend configurations. Implementations must persist
// on every mutation and return configs in insertion order from List.
type Store interface {
	// AddModelConfig validates and stores a new config, assigning its ID.
	AddModelConfig(c *Config) (string, error)
	// UpdateModelConfig validates and replaces the config with the given ID.
	UpdateModelConfig(id string, c *Config) error
	// RemoveModelConfig deletes the config with the given ID.
	RemoveModelConfig(id string) error
	// GetModelConfig returns the config with the given ID.
	GetModelConfig(id string) (*Config, error)
	// ListModelConfigs returns all configs in insertion order.
	ListModelConfigs() ([]*Config, error)
}

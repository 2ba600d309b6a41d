package modelconfig

import (
	"errors"
	"testing"
)

func validLocal() *Config {
	return &Config{
		Name: "yolo-local",
		Kind: KindLocal,
		Local: &LocalParams{
			WeightsPath: "/models/yolov8n.onnx",
			ClassNames:  []string{"cat", "dog"},
		},
	}
}

func validRemote() *Config {
	return &Config{
		Name: "gpt-vision",
		Kind: KindRemote,
		Remote: &RemoteParams{
			Endpoint:       "https://api.example.com/v1",
			APIKey:         "sk-test",
			ModelName:      "vision-large",
			PromptTemplate: "Detect all prominent objects",
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(validLocal()); err != nil {
		t.Errorf("valid local config rejected: %v", err)
	}
	if err := Validate(validRemote()); err != nil {
		t.Errorf("valid remote config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		base   func() *Config
	}{
		{"missing name", func(c *Config) { c.Name = "" }, validLocal},
		{"unknown kind", func(c *Config) { c.Kind = "grpc" }, validLocal},
		{"local without params", func(c *Config) { c.Local = nil }, validLocal},
		{"local with remote params", func(c *Config) { c.Remote = validRemote().Remote }, validLocal},
		{"local without weights", func(c *Config) { c.Local.WeightsPath = "" }, validLocal},
		{"local empty classes", func(c *Config) { c.Local.ClassNames = nil }, validLocal},
		{"local blank class name", func(c *Config) { c.Local.ClassNames = []string{"cat", ""} }, validLocal},
		{"remote without params", func(c *Config) { c.Remote = nil }, validRemote},
		{"remote with local params", func(c *Config) { c.Local = validLocal().Local }, validRemote},
		{"remote without endpoint", func(c *Config) { c.Remote.Endpoint = "" }, validRemote},
		{"remote empty api key", func(c *Config) { c.Remote.APIKey = "" }, validRemote},
		{"remote without model name", func(c *Config) { c.Remote.ModelName = "" }, validRemote},
		{"remote negative in-flight", func(c *Config) { c.Remote.MaxInFlight = -1 }, validRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.base()
			tt.mutate(c)
			err := Validate(c)
			if err == nil {
				t.Fatal("Validate accepted invalid config")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v is not ErrInvalid", err)
			}
		})
	}
}

func TestClassNames(t *testing.T) {
	local := validLocal()
	if got := local.ClassNames(); len(got) != 2 || got[0] != "cat" {
		t.Errorf("local ClassNames() = %v", got)
	}

	remote := validRemote()
	if got := remote.ClassNames(); got != nil {
		t.Errorf("remote ClassNames() = %v, want nil", got)
	}

	remote.Remote.ClassNames = []string{"car"}
	if got := remote.ClassNames(); len(got) != 1 || got[0] != "car" {
		t.Errorf("remote ClassNames() = %v", got)
	}
}

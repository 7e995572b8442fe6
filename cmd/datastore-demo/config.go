package main

import (
	"context"
	"io"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	datasetID      string
	clientEmail    string
	privateKeyPath string
	accessToken    string
	apiBase        string
	profilePath    string
	debug          string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		datasetID:      env.GetVariableOrDefault(ctx, "DATASTORE_DATASET_ID", ""),
		clientEmail:    env.GetVariableOrDefault(ctx, "DATASTORE_CLIENT_EMAIL", ""),
		privateKeyPath: env.GetVariableOrDefault(ctx, "DATASTORE_PRIVATE_KEY_PATH", ""),
		accessToken:    env.GetVariableOrDefault(ctx, "DATASTORE_ACCESS_TOKEN", ""),
		apiBase:        env.GetVariableOrDefault(ctx, "DATASTORE_API_BASE", ""),
		profilePath:    env.GetVariableOrDefault(ctx, "DATASTORE_CONFIG_PATH", ""),
		debug:          env.GetVariableOrDefault(ctx, "DATASTORE_DEBUG", "false"),
	}
}

type FilterConfig struct {
	Expression string `yaml:"expression"`
	Value      any    `yaml:"value"`
}

type QueryConfig struct {
	Name    string         `yaml:"name"`
	Filters []FilterConfig `yaml:"filters"`
}

// Profile describes what the demo writes and which queries it runs.
type Profile struct {
	Kind     string           `yaml:"kind"`
	Limit    int              `yaml:"limit"`
	Entities []map[string]any `yaml:"entities"`
	Queries  []QueryConfig    `yaml:"queries"`
}

func DefaultProfile() *Profile {
	return &Profile{
		Kind:  "Thing",
		Limit: 2,
		Entities: []map[string]any{
			{"name": "Toy", "some_int_value": 1234},
		},
		Queries: []QueryConfig{
			{
				Name:    "Things named Computer",
				Filters: []FilterConfig{{Expression: "name =", Value: "Computer"}},
			},
			{
				Name: "Computers with my_int_value 1234",
				Filters: []FilterConfig{
					{Expression: "name =", Value: "Computer"},
					{Expression: "my_int_value =", Value: 1234},
				},
			},
		},
	}
}

func LoadProfile(data io.Reader) (*Profile, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	p := DefaultProfile()
	p.Entities = nil
	p.Queries = nil

	err = yaml.Unmarshal(buf, &p)

	return p, err
}

func loadProfileFromPath(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadProfile(f)
}

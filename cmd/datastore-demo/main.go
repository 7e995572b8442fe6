package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/diwise/cloud-datastore/pkg/datastore"
	"github.com/diwise/cloud-datastore/pkg/datastore/client"
	"github.com/diwise/cloud-datastore/pkg/datastore/credentials"
	"github.com/diwise/cloud-datastore/pkg/datastore/keys"
	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const (
	appName string = "datastore-demo"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	cfg := LoadConfiguration(ctx)

	if cfg.datasetID == "" {
		log.Error("DATASTORE_DATASET_ID must be set")
		os.Exit(1)
	}

	profile, err := loadProfileFromPath(cfg.profilePath)
	if err != nil {
		log.Error("failed to load demo profile", "path", cfg.profilePath, "err", err.Error())
		os.Exit(1)
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		log.Error("failed to create connection", "err", err.Error())
		os.Exit(1)
	}

	err = run(ctx, datastore.NewDataset(cfg.datasetID, conn), profile, log, os.Stdout)
	if err != nil {
		log.Error("demo failed", "err", err.Error())
		os.Exit(1)
	}

	log.Info("done")
}

func connect(ctx context.Context, cfg Config) (client.Connection, error) {
	var authorizer credentials.Authorizer
	var err error

	if cfg.accessToken != "" {
		authorizer = credentials.StaticToken(cfg.accessToken)
	} else if cfg.clientEmail != "" {
		authorizer, err = credentials.ForServiceAccount(ctx, cfg.clientEmail, cfg.privateKeyPath)
		if err != nil {
			return nil, err
		}
	}

	apiBase := cfg.apiBase
	if apiBase == "" {
		apiBase = client.DefaultAPIBaseURL
	}

	return client.NewConnection(
		client.BaseURL(apiBase),
		client.WithCredentials(authorizer),
		client.Debug(cfg.debug),
	), nil
}

func run(ctx context.Context, ds *datastore.Dataset, profile *Profile, log *slog.Logger, out io.Writer) error {
	created := make([]*datastore.Entity, 0, len(profile.Entities))

	log.Info("creating entities", "kind", profile.Kind, "count", len(profile.Entities))

	err := ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		for _, properties := range profile.Entities {
			e := ds.Entity(profile.Kind)
			for name, value := range properties {
				if err := e.Set(name, value); err != nil {
					return fmt.Errorf("property %s: %w", name, err)
				}
			}

			if err := e.Save(ctx); err != nil {
				return err
			}

			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create entities: %w", err)
	}

	createdKeys := make([]*keys.Key, 0, len(created))
	for _, e := range created {
		createdKeys = append(createdKeys, e.Key())
	}

	found, err := ds.GetEntities(ctx, createdKeys)
	if err != nil {
		return fmt.Errorf("failed to look up created entities: %w", err)
	}

	if err = printEntities(out, "created", found); err != nil {
		return err
	}

	for _, e := range created {
		if err = e.Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete %s: %w", e.Key().String(), err)
		}
	}

	found, err = ds.GetEntities(ctx, createdKeys)
	if err != nil {
		return fmt.Errorf("failed to look up deleted entities: %w", err)
	}

	if len(found) != 0 {
		log.Warn("deleted entities are still returned by lookup", "count", len(found))
	}

	query := ds.Query(profile.Kind)

	result, err := query.Fetch(ctx, datastore.WithLimit(profile.Limit))
	if err != nil {
		return fmt.Errorf("failed to fetch first %d entities: %w", profile.Limit, err)
	}

	if err = printEntities(out, fmt.Sprintf("first %d", profile.Limit), result); err != nil {
		return err
	}

	for _, qc := range profile.Queries {
		q := query
		for _, f := range qc.Filters {
			q, err = q.Filter(f.Expression, f.Value)
			if err != nil {
				return fmt.Errorf("query %s: %w", qc.Name, err)
			}
		}

		result, err = q.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("query %s failed: %w", qc.Name, err)
		}

		if err = printEntities(out, qc.Name, result); err != nil {
			return err
		}
	}

	return nil
}

type printedEntity struct {
	Key        string         `json:"key"`
	Properties map[string]any `json:"properties"`
}

func printEntities(out io.Writer, title string, entities []*datastore.Entity) error {
	printed := make([]printedEntity, 0, len(entities))

	for _, e := range entities {
		pe := printedEntity{Properties: map[string]any{}}
		if e.Key() != nil {
			pe.Key = e.Key().String()
		}

		for name, value := range e.Properties() {
			if k, ok := value.(*keys.Key); ok {
				value = k.String()
			}
			pe.Properties[name] = value
		}

		printed = append(printed, pe)
	}

	b, err := json.MarshalIndent(map[string]any{"title": title, "entities": printed}, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(b))
	return err
}

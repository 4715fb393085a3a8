// pkg/catalog/seed.go
package catalog

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape for dev bootstrap. Server entries reference the
// user's sources by list position since ids are assigned at insert time.
type seedFile struct {
	Users []struct {
		Email        string `yaml:"email"`
		PasswordHash string `yaml:"password_hash"`
		Sources      []struct {
			Type     string            `yaml:"type"`
			Metadata map[string]string `yaml:"metadata"`
		} `yaml:"sources"`
		Servers []struct {
			Name    string `yaml:"name"`
			Sources []int  `yaml:"sources"`
		} `yaml:"servers"`
	} `yaml:"users"`
}

// SeedFromFile ingests initial users, sources and servers from a YAML file.
// Intended for dev; existing rows are not deduplicated.
func SeedFromFile(ctx context.Context, store Store, path string, log *zap.SugaredLogger) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return err
	}
	for _, su := range seed.Users {
		u, err := store.CreateUser(ctx, su.Email, su.PasswordHash)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", su.Email, err)
		}
		ids := make([]string, 0, len(su.Sources))
		for _, ss := range su.Sources {
			kind := SourceKind(ss.Type)
			if err := ValidateMetadata(kind, ss.Metadata); err != nil {
				log.Warnw("seed source skipped", "user", su.Email, "err", err)
				ids = append(ids, "")
				continue
			}
			src, err := store.CreateSource(ctx, u.ID, kind, ss.Metadata)
			if err != nil {
				return fmt.Errorf("seed source for %s: %w", su.Email, err)
			}
			ids = append(ids, src.ID)
		}
		for _, sv := range su.Servers {
			var refs []string
			for _, i := range sv.Sources {
				if i >= 0 && i < len(ids) && ids[i] != "" {
					refs = append(refs, ids[i])
				}
			}
			srv, err := store.CreateServer(ctx, u.ID, sv.Name, refs)
			if err != nil {
				return fmt.Errorf("seed server %s: %w", sv.Name, err)
			}
			log.Infow("seeded server", "name", srv.Name, "endpoint", srv.Endpoint, "sources", len(refs))
		}
	}
	return nil
}

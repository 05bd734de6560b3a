package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"versus-backend/internal/container"
	"versus-backend/internal/domain"
	"versus-backend/internal/validation"
)

// seedBattle is one entry of a seed file:
//
//   - name: Cats vs Dogs
//     options: [Cats, Dogs]
type seedBattle struct {
	Name    string   `yaml:"name"`
	Options []string `yaml:"options"`
}

// parseSeed decodes and validates a seed file into create requests.
func parseSeed(r io.Reader) ([]domain.CreateBattleRequest, error) {
	var entries []seedBattle
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	v := validation.New()
	reqs := make([]domain.CreateBattleRequest, 0, len(entries))
	for i, e := range entries {
		req := domain.CreateBattleRequest{Name: e.Name}
		for _, opt := range e.Options {
			req.Options = append(req.Options, domain.OptionInput{Name: opt})
		}
		if err := v.Validate(&req); err != nil {
			return nil, fmt.Errorf("battle %d (%q): %w", i+1, e.Name, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// seed creates every battle through the same path as POST /battles.
func seed(ctx context.Context, c *container.Container, reqs []domain.CreateBattleRequest) (int, error) {
	for i, req := range reqs {
		resp, err := c.Battles.Create(ctx, req)
		if err != nil {
			return i, fmt.Errorf("failed to create %q: %w", req.Name, err)
		}
		c.Logger.Info("Battle seeded", zap.String("battle_id", resp.BattleID))
	}
	return len(reqs), nil
}

func seedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create battles from a YAML file (Postgres or embedded store, per config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := commonRun()
			if err != nil {
				return err
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			reqs, err := parseSeed(f)
			if err != nil {
				return err
			}

			// Rooms and caches are not needed to seed.
			cfg.RedisURL = ""
			cfg.SeedDefaultBattle = false
			c, err := container.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close(context.Background()) }()

			n, err := seed(ctx, c, reqs)
			if err != nil {
				return err
			}
			log.Info("Data seeded successfully", zap.Int("battles", n))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "battles.yaml", "seed file")
	return cmd
}

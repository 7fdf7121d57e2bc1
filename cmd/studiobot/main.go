package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/m3rciful/studiobot/core/bootstrap"
	"github.com/m3rciful/studiobot/core/cmd"
	coreconfig "github.com/m3rciful/studiobot/core/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		Bootstrap: func(ctx context.Context, cfg *coreconfig.Config) (cmd.App, error) {
			infra, err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg})
			if err != nil {
				return nil, err
			}
			app, err := bootstrap.Build(cfg, infra.DB, bootstrap.AppOptions{})
			if err != nil {
				if infra.DB != nil {
					_ = infra.DB.Close()
				}
				return nil, fmt.Errorf("wire app: %w", err)
			}
			return app, nil
		},
	})
	if err != nil {
		log.Printf("studiobot: %v", err)
		os.Exit(1)
	}
}

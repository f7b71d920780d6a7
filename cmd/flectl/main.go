// Package main provides the entry point for flectl, the field-level
// encryption engine's command-line interface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cosmosfle/fle/cmd/flectl/commands"
	"github.com/cosmosfle/fle/internal/app"
	"github.com/cosmosfle/fle/internal/config"
)

func main() {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown container", slog.Any("error", err))
		}
	}()

	cmd := &cli.Command{
		Name:    "flectl",
		Usage:   "Field-level encryption engine for document databases",
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:  "encrypt",
				Usage: "Encrypt a JSON document per a container's client-encryption policy",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "container", Aliases: []string{"c"}, Usage: "Container name"},
					&cli.StringFlag{Name: "policy", Aliases: []string{"p"}, Required: true, Usage: "Path to a policy file"},
					&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Path to a JSON document (default: stdin)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunEncrypt(ctx, container, logger, cmd.String("container"), cmd.String("policy"), cmd.String("doc"), os.Stdout)
				},
			},
			{
				Name:  "decrypt",
				Usage: "Decrypt a JSON document per a container's client-encryption policy",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "container", Aliases: []string{"c"}, Usage: "Container name"},
					&cli.StringFlag{Name: "policy", Aliases: []string{"p"}, Required: true, Usage: "Path to a policy file"},
					&cli.StringFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Path to a JSON document (default: stdin)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunDecrypt(ctx, container, logger, cmd.String("container"), cmd.String("policy"), cmd.String("doc"), os.Stdout)
				},
			},
			{
				Name:  "wrap",
				Usage: "Wrap a base64 key value under a customer master key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key-uri", Required: true, Usage: "Key-vault key URI"},
					&cli.StringFlag{Name: "value", Required: true, Usage: "Base64-encoded plaintext"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					out, err := commands.RunWrap(ctx, container, logger, cmd.String("key-uri"), cmd.String("value"))
					if err != nil {
						return err
					}
					fmt.Println(out)
					return nil
				},
			},
			{
				Name:  "unwrap",
				Usage: "Unwrap a base64 key value under a customer master key",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key-uri", Required: true, Usage: "Key-vault key URI"},
					&cli.StringFlag{Name: "value", Required: true, Usage: "Base64-encoded wrapped key"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					out, err := commands.RunUnwrap(ctx, container, logger, cmd.String("key-uri"), cmd.String("value"))
					if err != nil {
						return err
					}
					fmt.Println(out)
					return nil
				},
			},
			{
				Name:  "cache",
				Usage: "Inspect or manage the settings cache",
				Commands: []*cli.Command{
					{
						Name:  "invalidate",
						Usage: "Evict a cached data-encryption key entry",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "container", Aliases: []string{"c"}, Usage: "Container name"},
							&cli.StringFlag{Name: "key-id", Required: true, Usage: "Client-encryption-key id"},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							return commands.RunCacheInvalidate(ctx, container, logger, cmd.String("container"), cmd.String("key-id"))
						},
					},
					{
						Name:  "stats",
						Usage: "Print the rewrap force-refresh count for a cache entry",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "container", Aliases: []string{"c"}, Usage: "Container name"},
							&cli.StringFlag{Name: "key-id", Required: true, Usage: "Client-encryption-key id"},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							count, err := commands.RunCacheStats(ctx, container, logger, cmd.String("container"), cmd.String("key-id"))
							if err != nil {
								return err
							}
							fmt.Println(count)
							return nil
						},
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("flectl error", slog.Any("error", err))
		os.Exit(1)
	}
}

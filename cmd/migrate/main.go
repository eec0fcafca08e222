package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"balkly_rewards/internal/pkg/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "migrate",
		Usage: "数据库迁移",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
			},
			&cli.StringFlag{
				Name:  "source",
				Value: "file://migrations",
				Usage: "迁移文件目录",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "执行全部未应用的迁移",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withMigrate(cmd, func(m *migrate.Migrate) error {
						return ignoreNoChange(m.Up())
					})
				},
			},
			{
				Name:  "down",
				Usage: "回滚一步",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withMigrate(cmd, func(m *migrate.Migrate) error {
						return ignoreNoChange(m.Steps(-1))
					})
				},
			},
			{
				Name:      "force",
				Usage:     "dirty 状态下强制设置版本",
				ArgsUsage: "<version>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					var version int
					if _, err := fmt.Sscanf(cmd.Args().First(), "%d", &version); err != nil {
						return fmt.Errorf("invalid version %q", cmd.Args().First())
					}
					return withMigrate(cmd, func(m *migrate.Migrate) error {
						return m.Force(version)
					})
				},
			},
			{
				Name:  "version",
				Usage: "当前版本",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withMigrate(cmd, func(m *migrate.Migrate) error {
						version, dirty, err := m.Version()
						if errors.Is(err, migrate.ErrNilVersion) {
							log.Println("No migration applied")
							return nil
						}
						if err != nil {
							return err
						}
						log.Printf("Version %d (dirty=%v)", version, dirty)
						return nil
					})
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func withMigrate(cmd *cli.Command, fn func(m *migrate.Migrate) error) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	m, err := migrate.New(cmd.String("source"), cfg.Database.URL())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := fn(m); err != nil {
		return err
	}
	log.Println("Migration successful")
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

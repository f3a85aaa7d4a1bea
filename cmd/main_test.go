package main

import (
	"context"
	"errors"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/fightlens/internal/adapters/accounts"
	"github.com/okian/fightlens/internal/adapters/repository"
	"github.com/okian/fightlens/internal/config"
	"github.com/okian/fightlens/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.StorageBackend = config.BackendMemory
	cfg.AccountBackend = config.BackendStatic
	cfg.AccountFactions = map[string]string{"acc-1": "lspd"}
	return cfg
}

func TestBuild(t *testing.T) {
	convey.Convey("Given an in-memory configuration", t, func() {
		ctx := context.Background()
		cfg := memoryConfig()

		convey.Convey("When building the components", func() {
			deps, err := build(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer deps.close(logger.Get())

			convey.Convey("Then the service and store check are wired", func() {
				convey.So(deps.svc, convey.ShouldNotBeNil)
				convey.So(deps.checks, convey.ShouldHaveLength, 1)
				convey.So(deps.checks[0].Name, convey.ShouldEqual, "store")
				convey.So(deps.checks[0].Run(ctx), convey.ShouldBeNil)
			})

			convey.Convey("And both passes run against the empty store", func() {
				convey.So(deps.svc.AnticheatTask().Execute(ctx), convey.ShouldBeNil)
				convey.So(deps.svc.FactionFightTask().Execute(ctx), convey.ShouldBeNil)
			})

			convey.Convey("And alerts stay disabled without an api base", func() {
				convey.So(deps.svc.GetStats()["alertsHealthy"], convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the storage backend is unknown", func() {
			cfg.StorageBackend = "postgres"
			_, err := build(ctx, cfg)
			convey.So(errors.Is(err, repository.ErrUnknownBackend), convey.ShouldBeTrue)
		})

		convey.Convey("When the mongo account backend has no mongo store", func() {
			cfg.AccountBackend = config.BackendMongo
			_, err := build(ctx, cfg)
			convey.So(errors.Is(err, accounts.ErrUnknownBackend), convey.ShouldBeTrue)
		})
	})
}

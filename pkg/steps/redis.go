package steps

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opaldeploy/opaldeploy/pkg/pipeline"
)

func redisAppName(c *pipeline.Context) string {
	return c.Project.Name + "_redis"
}

func redisRequested(c *pipeline.Context) bool {
	return c.Project.Dependencies.Redis != ""
}

// InstallRedis builds the requested redis version from source when the
// installed one is older, and symlinks redis-server and redis-cli into
// ~/bin. Skipped entirely when no redis dependency is configured.
func InstallRedis() pipeline.Step {
	return pipeline.Step{
		Name: "redis.install",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			version := c.Project.Dependencies.Redis
			if version == "" {
				return pipeline.Continue()
			}

			// the cli reports the same version as the server and is
			// easier to parse
			proceed, err := preInstall(ctx, c, "redis-cli", version)
			if err != nil {
				return pipeline.Halt(err)
			}
			if !proceed {
				return pipeline.Continue()
			}

			baseName := "redis-" + version
			fileName := baseName + ".tar.gz"
			url := "http://download.redis.io/releases/" + fileName
			if err := download(ctx, c.Exec, fileName, url); err != nil {
				return pipeline.Halt(err)
			}

			log.Info().Str("version", version).Msg("installing redis")
			if _, err := c.Exec.Run(ctx, fmt.Sprintf("cd $HOME/src && tar zxf %s", fileName)); err != nil {
				return pipeline.Halt(err)
			}
			if _, err := c.Exec.Run(ctx, fmt.Sprintf("export TMPDIR=$HOME/tmp && cd $HOME/src/%s && make", baseName)); err != nil {
				return pipeline.Halt(err)
			}
			if _, err := c.Exec.Run(ctx, "rm $HOME/src/"+fileName); err != nil {
				return pipeline.Halt(err)
			}

			// defaults are overridden on the command line by supervisor
			if _, err := c.Exec.Run(ctx, fmt.Sprintf("cp $HOME/src/%s/redis.conf $HOME/etc/redis.conf", baseName)); err != nil {
				return pipeline.Halt(err)
			}

			for _, name := range []string{"redis-cli", "redis-server"} {
				link := fmt.Sprintf("ln -sf $HOME/src/%s/src/%s ~/bin/%s", baseName, name, name)
				if _, err := c.Exec.Run(ctx, link); err != nil {
					return pipeline.Halt(err)
				}
			}

			log.Info().Str("version", version).Msg("successfully installed redis")
			return pipeline.Continue()
		},
	}
}

// FindRedis resolves the redis binaries and records their paths.
func FindRedis() pipeline.Step {
	return pipeline.Step{
		Name: "redis.find",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !redisRequested(c) {
				return pipeline.Continue()
			}

			cli, err := findExecutable(ctx, c.Exec, "redis-cli")
			if err != nil {
				return pipeline.Halt(err)
			}
			if cli == "" {
				return pipeline.Haltf("redis-cli not found on server")
			}

			server, err := findExecutable(ctx, c.Exec, "redis-server")
			if err != nil {
				return pipeline.Halt(err)
			}
			if server == "" {
				return pipeline.Haltf("redis-server not found on server")
			}

			c.Data.RedisCLIBin = cli
			c.Data.RedisServerBin = server
			return pipeline.Continue()
		},
	}
}

// FindCacheApp looks up the redis app slot by name.
func FindCacheApp() pipeline.Step {
	return pipeline.Step{
		Name: "redis.find-app",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !redisRequested(c) {
				return pipeline.Continue()
			}
			id, found, err := apps(c).FindID(ctx, redisAppName(c))
			if err != nil {
				return pipeline.Halt(err)
			}
			if found {
				c.Data.CacheAppID = id
				log.Info().Str("app", redisAppName(c)).Str("id", id).Msg("found cache app id")
			}
			return pipeline.Continue()
		},
	}
}

// CreateCacheApp creates the redis app slot when the lookup found none.
func CreateCacheApp() pipeline.Step {
	return pipeline.Step{
		Name: "redis.create-app",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !redisRequested(c) {
				return pipeline.Continue()
			}
			if c.Data.CacheAppID == "" && c.Data.AccountID == "" {
				return pipeline.Haltf("an account id is required to create the cache app")
			}
			id, err := apps(c).Create(ctx, redisAppName(c), c.Data.AccountID, c.Data.CacheAppID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.CacheAppID = id
			return pipeline.Continue()
		},
	}
}

// FetchCacheAppInfo polls the redis app until ready, mainly for its
// assigned port.
func FetchCacheAppInfo() pipeline.Step {
	return pipeline.Step{
		Name: "redis.app-info",
		Run: func(ctx context.Context, c *pipeline.Context) pipeline.Result {
			if !redisRequested(c) {
				return pipeline.Continue()
			}
			if c.Data.CacheAppID == "" {
				return pipeline.Haltf("no cache app id to fetch info for")
			}
			info, err := apps(c).FetchInfo(ctx, c.Data.CacheAppID)
			if err != nil {
				return pipeline.Halt(err)
			}
			c.Data.CacheAppInfo = info
			return pipeline.Continue()
		},
	}
}

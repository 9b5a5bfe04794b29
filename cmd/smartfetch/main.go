// smartfetch fetches JSON resources over HTTP and memoizes the responses,
// either in process memory or in a postgresql table, so repeated runs
// against the same URLs skip the network.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/meetbryce/smartfetch/cache"
	"github.com/meetbryce/smartfetch/fetch"
	"github.com/meetbryce/smartfetch/runner"

	"github.com/urfave/cli/v2"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.App{
		Name:  "smartfetch",
		Usage: "fetch JSON over HTTP with credential-scoped response caching",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Usage:   "cache backend: memory or postgres",
			Value:   "memory",
			EnvVars: []string{"SMARTFETCH_BACKEND"},
		},
		&cli.Int64Flag{
			Name:    "ttl",
			Usage:   "cache TTL in seconds",
			Value:   300,
			EnvVars: []string{"SMARTFETCH_TTL"},
		},
		&cli.StringFlag{
			Name:    "cache-table",
			Usage:   "postgres table to cache into",
			Value:   "smartfetch_cache",
			EnvVars: []string{"SMARTFETCH_CACHE_TABLE"},
		},
		&cli.StringFlag{
			Name:    "db-host",
			Value:   "localhost",
			EnvVars: []string{"SMARTFETCH_DB_HOST"},
		},
		&cli.IntFlag{
			Name:    "db-port",
			Value:   5432,
			EnvVars: []string{"SMARTFETCH_DB_PORT"},
		},
		&cli.StringFlag{
			Name:    "db-name",
			Value:   "smartfetch",
			EnvVars: []string{"SMARTFETCH_DB_NAME"},
		},
		&cli.StringFlag{
			Name:    "db-user",
			Value:   "postgres",
			EnvVars: []string{"SMARTFETCH_DB_USER"},
		},
		&cli.StringFlag{
			Name:    "db-password",
			EnvVars: []string{"SMARTFETCH_DB_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "db-sslmode",
			Usage:   "disable, verify-ca, verify-full; anything else means encrypted but unverified",
			EnvVars: []string{"SMARTFETCH_DB_SSLMODE"},
		},
		&cli.StringFlag{
			Name:    "auth",
			Usage:   "auth strategy: none, basic, bearer, digest, header, query",
			Value:   "none",
			EnvVars: []string{"SMARTFETCH_AUTH"},
		},
		&cli.StringFlag{
			Name:    "auth-user",
			EnvVars: []string{"SMARTFETCH_AUTH_USER"},
		},
		&cli.StringFlag{
			Name:    "auth-password",
			EnvVars: []string{"SMARTFETCH_AUTH_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "auth-token",
			EnvVars: []string{"SMARTFETCH_AUTH_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "auth-name",
			Usage:   "header or query parameter name for header/query auth",
			EnvVars: []string{"SMARTFETCH_AUTH_NAME"},
		},
		&cli.StringFlag{
			Name:    "auth-value",
			Usage:   "header or query parameter value for header/query auth",
			EnvVars: []string{"SMARTFETCH_AUTH_VALUE"},
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "fetch",
			Usage:     "fetch one or more URLs, serving repeats from cache",
			ArgsUsage: "<url> [<url> ...]",
			Action:    runFetch,
		},
	}

	app.RunAndExitOnError()
}

func buildAuth(cctx *cli.Context) (fetch.Auth, error) {
	switch cctx.String("auth") {
	case "", "none":
		return nil, nil
	case "basic":
		return &fetch.BasicAuth{Username: cctx.String("auth-user"), Password: cctx.String("auth-password")}, nil
	case "bearer":
		return &fetch.BearerAuth{Token: cctx.String("auth-token")}, nil
	case "digest":
		return &fetch.DigestAuth{Username: cctx.String("auth-user"), Password: cctx.String("auth-password")}, nil
	case "header":
		return &fetch.HeaderAuth{Name: cctx.String("auth-name"), Value: cctx.String("auth-value")}, nil
	case "query":
		return &fetch.QueryAuth{Name: cctx.String("auth-name"), Value: cctx.String("auth-value")}, nil
	default:
		return nil, fmt.Errorf("unknown auth strategy %q", cctx.String("auth"))
	}
}

func buildStore(cctx *cli.Context) (cache.Store, error) {
	switch cctx.String("backend") {
	case "memory":
		return cache.NewMemStore(cache.DefaultCapacity), nil
	case "postgres":
		table := cctx.String("cache-table")
		if err := runner.ValidateTableName(table); err != nil {
			return nil, err
		}
		return cache.NewPGStore(cache.PGConfig{
			Host:     cctx.String("db-host"),
			Port:     cctx.Int("db-port"),
			Database: cctx.String("db-name"),
			User:     cctx.String("db-user"),
			Password: cctx.String("db-password"),
			SSLMode:  cctx.String("db-sslmode"),
			Table:    table,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cctx.String("backend"))
	}
}

func runFetch(cctx *cli.Context) error {
	if cctx.NArg() == 0 {
		return fmt.Errorf("no URLs given")
	}

	auth, err := buildAuth(cctx)
	if err != nil {
		return err
	}
	store, err := buildStore(cctx)
	if err != nil {
		return err
	}

	var fp string
	if auth != nil {
		fp = auth.Fingerprint()
	}

	items := make([]runner.Item, 0, cctx.NArg())
	for _, url := range cctx.Args().Slice() {
		items = append(items, runner.Item{
			URL:                   url,
			CredentialFingerprint: fp,
			TTL:                   cctx.Int64("ttl"),
		})
	}

	r := runner.New(store, fetch.NewClient(auth, nil), slog.Default())
	results, err := r.Run(cctx.Context, items)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

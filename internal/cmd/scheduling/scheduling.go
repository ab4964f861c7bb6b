// Package scheduling parses configuration and runs the scheduling service.
package scheduling

import (
	"context"
	"flag"
	"fmt"
	"time"

	platformcmd "github.com/huddlehq/huddle/internal/platform/cmd"
	"github.com/huddlehq/huddle/internal/services/scheduling/app"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/overlap"
)

// Config holds the scheduling command configuration.
type Config struct {
	Port          int           `env:"HUDDLE_SCHEDULING_PORT" envDefault:"8086"`
	DBPath        string        `env:"HUDDLE_SCHEDULING_DB_PATH" envDefault:"data/scheduling.db"`
	Retention     time.Duration `env:"HUDDLE_SCHEDULING_RETENTION" envDefault:"168h"`
	NearShortfall int           `env:"HUDDLE_SCHEDULING_NEAR_SHORTFALL" envDefault:"1"`
	PartialNum    int           `env:"HUDDLE_SCHEDULING_PARTIAL_NUM" envDefault:"1"`
	PartialDen    int           `env:"HUDDLE_SCHEDULING_PARTIAL_DEN" envDefault:"2"`
}

// ParseConfig loads env defaults and then flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.DurationVar(&cfg.Retention, "retention", cfg.Retention, "auto-archive retention window")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the scheduling server with telemetry until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceScheduling, func(ctx context.Context) error {
		server, err := app.NewServer(app.Config{
			Port:      cfg.Port,
			DBPath:    cfg.DBPath,
			Retention: cfg.Retention,
			Policy: overlap.Policy{
				NearShortfall: cfg.NearShortfall,
				PartialNum:    cfg.PartialNum,
				PartialDen:    cfg.PartialDen,
			},
		})
		if err != nil {
			return fmt.Errorf("init scheduling server: %w", err)
		}
		defer server.Close()

		if err := server.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve scheduling: %w", err)
		}
		return nil
	})
}

package music_player

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/norvireon/internal/modules/music_player/application/session"
	"github.com/sglre6355/norvireon/internal/modules/music_player/domain"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config holds the music player module configuration.
type Config struct {
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE"                  envDefault:"false"`
	SearchSource     string `env:"MUSIC_SEARCH_SOURCE"              envDefault:"ytsearch"`

	Store      string `env:"MUSIC_STORE"       envDefault:"memory"`
	RedisURL   string `env:"REDIS_URL"`
	SQLitePath string `env:"MUSIC_SQLITE_PATH" envDefault:"music.db"`

	MonitorInterval      time.Duration `env:"MUSIC_MONITOR_INTERVAL"       envDefault:"2s"`
	EmptyChannelGrace    time.Duration `env:"MUSIC_EMPTY_CHANNEL_GRACE"    envDefault:"30s"`
	IdleTimeout          time.Duration `env:"MUSIC_IDLE_TIMEOUT"           envDefault:"30s"`
	StallGrace           time.Duration `env:"MUSIC_STALL_GRACE"            envDefault:"15s"`
	AutoAdvance          bool          `env:"MUSIC_AUTO_ADVANCE"           envDefault:"false"`
	MaxPlaylistTracks    int           `env:"MUSIC_MAX_PLAYLIST_TRACKS"    envDefault:"25"`
	DJRoleID             snowflake.ID  `env:"MUSIC_DJ_ROLE_ID"`
	ProgressEditInterval time.Duration `env:"MUSIC_PROGRESS_EDIT_INTERVAL" envDefault:"5s"`
	RelatedTracks        bool          `env:"MUSIC_RELATED_TRACKS"         envDefault:"true"`
	RelatedRate          float64       `env:"MUSIC_RELATED_RATE"           envDefault:"1"`
}

// LoadConfig parses the music player configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	err := env.ParseWithOptions(cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeFor[snowflake.ID](): func(v string) (any, error) {
				return snowflake.Parse(v)
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when MUSIC_STORE=redis"))
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("MUSIC_SQLITE_PATH is required when MUSIC_STORE=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MUSIC_STORE %q", c.Store))
	}

	if c.MonitorInterval < time.Second || c.MonitorInterval > 5*time.Second {
		errs = append(errs, fmt.Errorf("MUSIC_MONITOR_INTERVAL must be between 1s and 5s, got %s", c.MonitorInterval))
	}

	switch domain.SearchSource(c.SearchSource) {
	case domain.SourceYouTube, domain.SourceYouTubeMusic, domain.SourceSoundCloud:
	default:
		errs = append(errs, fmt.Errorf("unknown MUSIC_SEARCH_SOURCE %q", c.SearchSource))
	}

	if c.EmptyChannelGrace < 0 || c.IdleTimeout < 0 || c.StallGrace < 0 || c.ProgressEditInterval < 0 {
		errs = append(errs, errors.New("music timeouts must not be negative"))
	}

	return errors.Join(errs...)
}

// SessionConfig returns the session timing derived from the configuration.
func (c *Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.MonitorInterval = c.MonitorInterval
	cfg.EmptyChannelGrace = c.EmptyChannelGrace
	cfg.IdleTimeout = c.IdleTimeout
	cfg.StallGrace = c.StallGrace
	cfg.AutoAdvance = c.AutoAdvance
	return cfg
}

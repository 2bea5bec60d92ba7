package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/europakollen/capitalquiz/internal/quiz"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/capitalquiz.db"`
	RedisURL string     `env:"REDIS_URL"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR"`

	// GazetteerPath replaces the embedded capital list when set.
	GazetteerPath string `env:"GAZETTEER_PATH"`

	// DifficultyPolicy selects "window" or "milestone".
	DifficultyPolicy string `env:"DIFFICULTY_POLICY" envDefault:"window"`

	MinChoices      int     `env:"MIN_CHOICES" envDefault:"3"`
	MaxChoices      int     `env:"MAX_CHOICES" envDefault:"10"`
	WindowSize      int     `env:"WINDOW_SIZE" envDefault:"5"`
	RaiseThreshold  float64 `env:"RAISE_THRESHOLD" envDefault:"0.8"`
	LowerThreshold  float64 `env:"LOWER_THRESHOLD" envDefault:"0.4"`
	StreakMilestone int     `env:"STREAK_MILESTONE" envDefault:"7"`
	ErrorMilestone  int     `env:"ERROR_MILESTONE" envDefault:"3"`
	TokenMilestone  int     `env:"TOKEN_MILESTONE" envDefault:"7"`
	InitialTokens   int     `env:"INITIAL_TOKENS" envDefault:"1"`

	// Feedback delays before the next round is presented; the incorrect
	// delay is longer so the reveal can be shown.
	CorrectDelay   time.Duration `env:"CORRECT_DELAY" envDefault:"2700ms"`
	IncorrectDelay time.Duration `env:"INCORRECT_DELAY" envDefault:"3700ms"`
	RescueTimeout  time.Duration `env:"RESCUE_TIMEOUT" envDefault:"7s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.MinChoices < 1 || cfg.MaxChoices < cfg.MinChoices {
		return nil, fmt.Errorf("invalid choice bounds [%d, %d]", cfg.MinChoices, cfg.MaxChoices)
	}
	return &cfg, nil
}

// Rules maps the configured tunables onto the engine's rule set.
func (c *Config) Rules() quiz.Rules {
	return quiz.Rules{
		MinChoices:      c.MinChoices,
		MaxChoices:      c.MaxChoices,
		WindowSize:      c.WindowSize,
		RaiseThreshold:  c.RaiseThreshold,
		LowerThreshold:  c.LowerThreshold,
		StreakMilestone: c.StreakMilestone,
		ErrorMilestone:  c.ErrorMilestone,
		TokenMilestone:  c.TokenMilestone,
		InitialTokens:   c.InitialTokens,
	}
}

package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`

	AuthSecret      string        `env:"AUTH_SECRET"       envDefault:"chainbreak" validate:"required"`
	AuthRejectDelay time.Duration `env:"AUTH_REJECT_DELAY" envDefault:"2s"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"60s" validate:"min=1ms"`
	SubPushInterval   time.Duration `env:"SUB_PUSH_INTERVAL"  envDefault:"10s" validate:"min=1ms"`

	RoomUpdateRate         time.Duration `env:"ROOM_UPDATE_RATE"          envDefault:"10s"   validate:"min=1ms"`
	GameTickRate           time.Duration `env:"GAME_TICK_RATE"            envDefault:"100ms" validate:"min=1ms"`
	GameClientsRefreshRate time.Duration `env:"GAME_CLIENTS_REFRESH_RATE" envDefault:"10s"   validate:"min=1ms"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

// Copyright 2018 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package config holds the daemon settings.  Values come from FAVORITES_*
// environment variables first; command line flags override them.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jc4p/llm-rater-frame/contracts/favorite"
)

// Config is the full daemon configuration.
type Config struct {
	// Chain access.
	RPCURL     string        `env:"FAVORITES_RPC_URL"     envDefault:"https://mainnet.base.org"`
	Contract   string        `env:"FAVORITES_CONTRACT"`
	ChainID    uint64        `env:"FAVORITES_CHAIN_ID"`
	RPCTimeout time.Duration `env:"FAVORITES_RPC_TIMEOUT" envDefault:"10s"`

	// Receipt polling.
	PollAttempts    int           `env:"FAVORITES_POLL_ATTEMPTS"     envDefault:"5"`
	PollInterval    time.Duration `env:"FAVORITES_POLL_INTERVAL"     envDefault:"2s"`
	PollMultiplier  float64       `env:"FAVORITES_POLL_MULTIPLIER"   envDefault:"1.6"`
	PollMaxInterval time.Duration `env:"FAVORITES_POLL_MAX_INTERVAL" envDefault:"10s"`

	// Token id extraction.
	Heuristic     bool   `env:"FAVORITES_HEURISTIC"      envDefault:"true"`
	RecencyWindow uint64 `env:"FAVORITES_RECENCY_WINDOW" envDefault:"10"`

	// Storage.  DatabaseURL may be empty in dev mode only.
	DatabaseURL string `env:"FAVORITES_DATABASE_URL"`
	Dev         bool   `env:"FAVORITES_DEV"`

	// HTTP surface.
	Listen          string `env:"FAVORITES_LISTEN"            envDefault:":8080"`
	CORSOrigin      string `env:"FAVORITES_CORS_ORIGIN"       envDefault:"*"`
	ExternalURL     string `env:"FAVORITES_EXTERNAL_URL"      envDefault:"https://llm-rater.kasra.codes"`
	LegacyToken0Row int64  `env:"FAVORITES_LEGACY_TOKEN0_ROW"`

	// Logging.
	Verbosity int  `env:"FAVORITES_VERBOSITY" envDefault:"3"`
	LogJSON   bool `env:"FAVORITES_LOG_JSON"`
}

// Load reads the configuration from the environment.  The chain and contract
// default to the collection's Base deployment.
func Load() (Config, error) {
	cfg := Config{
		Contract: favorite.DefaultAddress.Hex(),
		ChainID:  favorite.BaseChainID,
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ContractAddress returns the collection address.  Call Validate first.
func (c Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract)
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var errs []error
	if c.RPCURL == "" {
		errs = append(errs, errors.New("rpc url is required"))
	}
	if !common.IsHexAddress(c.Contract) {
		errs = append(errs, fmt.Errorf("contract %q is not an address", c.Contract))
	}
	if c.DatabaseURL == "" && !c.Dev {
		errs = append(errs, errors.New("database url is required outside dev mode"))
	}
	if c.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("poll attempts must be positive, have %d", c.PollAttempts))
	}
	if c.PollInterval <= 0 || c.PollMaxInterval < c.PollInterval {
		errs = append(errs, fmt.Errorf("poll interval %v and max interval %v are inconsistent", c.PollInterval, c.PollMaxInterval))
	}
	if c.PollMultiplier < 1 {
		errs = append(errs, fmt.Errorf("poll multiplier must be at least 1, have %v", c.PollMultiplier))
	}
	if c.RecencyWindow == 0 {
		errs = append(errs, errors.New("recency window must be positive"))
	}
	if c.LegacyToken0Row < 0 {
		errs = append(errs, errors.New("legacy token 0 row must not be negative"))
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		errs = append(errs, fmt.Errorf("verbosity %d out of range 0-5", c.Verbosity))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

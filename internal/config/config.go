// Copyright 2026 The NFTrout Indexer Authors
// This file is part of the NFTrout indexer.
//
// The NFTrout indexer is free software: you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.

// Package config loads the indexer's settings from NFT_-prefixed
// environment variables, optionally overridden by a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every recognized setting, defaults as given in spec.md
// §6's table.
type Config struct {
	APIPort         uint16 `yaml:"api_port"`
	IPFSEndpoint    string `yaml:"ipfs_endpoint"`
	DBPath          string `yaml:"db_path"`
	ReindexInterval uint64 `yaml:"reindex_interval"`
	Chain           string `yaml:"chain"`
}

func defaults() Config {
	return Config{
		APIPort:         3474,
		IPFSEndpoint:    "http://127.0.0.1:5001/api/v0/",
		DBPath:          "nftrout.sqlite",
		ReindexInterval: 60,
		Chain:           "sapphire-mainnet",
	}
}

// Load builds a Config from defaults, environment variables prefixed
// NFT_, and - if filePath is non-empty - a YAML file. The file is
// merged last, so a key set in both the environment and the file
// takes the file's value: this mirrors the config-crate layering the
// original builds on (sources are added env-then-file, and later
// sources win).
func Load(filePath string) (Config, error) {
	cfg := defaults()
	cfg.applyEnv()
	if filePath != "" {
		if err := cfg.applyFile(filePath); err != nil {
			return Config{}, err
		}
	}
	if cfg.IPFSEndpoint != "" && !strings.HasSuffix(cfg.IPFSEndpoint, "/") {
		cfg.IPFSEndpoint += "/"
	}
	switch cfg.Chain {
	case "sapphire-mainnet", "sapphire-testnet", "local":
	default:
		return Config{}, fmt.Errorf("unrecognized chain %q", cfg.Chain)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("NFT_API_PORT"); ok {
		if n, err := strconv.ParseUint(v, 10, 16); err == nil {
			c.APIPort = uint16(n)
		}
	}
	if v, ok := os.LookupEnv("NFT_IPFS_ENDPOINT"); ok {
		c.IPFSEndpoint = v
	}
	if v, ok := os.LookupEnv("NFT_DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := os.LookupEnv("NFT_REINDEX_INTERVAL"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.ReindexInterval = n
		}
	}
	if v, ok := os.LookupEnv("NFT_CHAIN"); ok {
		c.Chain = v
	}
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fromFile Config
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if fromFile.APIPort != 0 {
		c.APIPort = fromFile.APIPort
	}
	if fromFile.IPFSEndpoint != "" {
		c.IPFSEndpoint = fromFile.IPFSEndpoint
	}
	if fromFile.DBPath != "" {
		c.DBPath = fromFile.DBPath
	}
	if fromFile.ReindexInterval != 0 {
		c.ReindexInterval = fromFile.ReindexInterval
	}
	if fromFile.Chain != "" {
		c.Chain = fromFile.Chain
	}
	return nil
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"go-docverify/compare"
	"go-docverify/logging"
	redis "go-docverify/redis"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	JwtPrivateKeyPath string `json:"jwt_private_key_path"`
	Issuer            string `json:"issuer"`

	// MatchThreshold overrides the default comparison threshold when > 0.
	MatchThreshold float64 `json:"match_threshold,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`

	Logging logging.Config `json:"logging,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config file: %v\n", err)
		os.Exit(1)
	}

	logging.Init(config.Logging)
	slog.Info("Using config", "path", *configPath)
	slog.Info("Hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	signer, err := NewJwtResultSigner(config.JwtPrivateKeyPath, config.Issuer)
	if err != nil {
		slog.Error("failed to instantiate result signer", "error", err)
		os.Exit(1)
	}

	keyStore, err := createKeyStore(&config)
	if err != nil {
		slog.Error("failed to instantiate key store", "error", err)
		os.Exit(1)
	}

	serverState := ServerState{
		keyStore: keyStore,
		signer:   signer,
		comparer: newComparer(config.MatchThreshold),
	}

	server, err := NewServer(&serverState, config.ServerConfig)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	err = server.ListenAndServe()
	if err != nil {
		slog.Error("failed to listen and serve", "error", err)
		os.Exit(1)
	}
}

func readConfigFile(path string) (Config, error) {
	configBytes, err := os.ReadFile(path)

	if err != nil {
		return Config{}, err
	}

	var config Config
	err = json.Unmarshal(configBytes, &config)

	if err != nil {
		return Config{}, err
	}

	return config, nil
}

func newComparer(threshold float64) *compare.Comparer {
	comparer := compare.New()
	if threshold > 0 {
		comparer.Threshold = threshold
	}
	return comparer
}

func createKeyStore(config *Config) (KeyStore, error) {
	if config.StorageType == "redis" {
		slog.Info("Using redis key store")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisKeyStore(client, config.RedisConfig.Namespace), nil
	}
	if config.StorageType == "redis_sentinel" {
		slog.Info("Using redis sentinel key store")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisKeyStore(client, config.RedisSentinelConfig.Namespace), nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory key store")
		return NewInMemoryKeyStore(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"log/slog"

	"go-kyc-verifier/checks"
	"go-kyc-verifier/decision"
	"go-kyc-verifier/extraction"
	"go-kyc-verifier/images"
	"go-kyc-verifier/logging"
	"go-kyc-verifier/metrics"
	"go-kyc-verifier/pipeline"
	"go-kyc-verifier/quality"
	redis "go-kyc-verifier/redis"
)

type Config struct {
	ServerConfig ServerConfig `json:"server_config"`

	LogLevel string `json:"log_level,omitempty"`

	QualityConfig   quality.Config    `json:"quality_config,omitempty"`
	DecisionConfig  decision.Config   `json:"decision_config,omitempty"`
	ExtractorConfig extraction.Config `json:"extractor_config"`

	// When set, verification responses carry an RS256-signed attestation.
	AttestationPrivateKeyPath string `json:"attestation_private_key_path,omitempty"`
	AttestationIssuerId       string `json:"attestation_issuer_id,omitempty"`

	StorageType         string                    `json:"storage_type"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Parse()

	if *configPath == "" {
		slog.Error("please provide a config path using the --config flag")
		os.Exit(1)
	}

	config, err := readConfigFile(*configPath)
	if err != nil {
		slog.Error("failed to read config file", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logging.InitLogger(config.LogLevel)
	slog.Info("Using config", "path", *configPath)
	slog.Info("Hosting on", "host", config.ServerConfig.Host, "port", config.ServerConfig.Port)

	sessionStorage, err := createSessionStorage(&config)
	if err != nil {
		slog.Error("failed to instantiate session storage", "error", err)
		os.Exit(1)
	}

	var attestationCreator AttestationCreator
	if config.AttestationPrivateKeyPath != "" {
		attestationCreator, err = NewRsaAttestationCreator(
			config.AttestationPrivateKeyPath,
			config.AttestationIssuerId,
		)
		if err != nil {
			slog.Error("failed to instantiate attestation creator", "error", err)
			os.Exit(1)
		}
	}

	config.QualityConfig.ApplyDefaults()
	extractor := extraction.NewClient(config.ExtractorConfig)

	verificationPipeline := pipeline.New(
		quality.NewGate(config.QualityConfig),
		extractor,
		extractor,
		checks.NewChecker(),
		decision.NewEngine(config.DecisionConfig),
		metrics.New(),
	)

	serverState := ServerState{
		sessionStorage:     sessionStorage,
		pipeline:           verificationPipeline,
		converter:          images.NewJPEGConverter(),
		attestationCreator: attestationCreator,
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

func createSessionStorage(config *Config) (SessionStorage, error) {
	if config.StorageType == "redis" {
		slog.Info("Using redis session storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisSessionStorage(client, config.RedisConfig.Namespace), nil
	}
	if config.StorageType == "redis_sentinel" {
		slog.Info("Using redis sentinel session storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return NewRedisSessionStorage(client, config.RedisSentinelConfig.Namespace), nil
	}
	if config.StorageType == "memory" {
		slog.Info("Using in memory session storage")
		return NewInMemorySessionStorage(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}

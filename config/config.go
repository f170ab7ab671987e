package config

import (
	"encoding/hex"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/clawnet/clawnet/crypto"
)

// Config is a node's full runtime configuration, loaded from a single TOML
// file.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	NodeKey       string `toml:"NodeKey"` // hex-encoded Ed25519 seed; generated on first run

	Gossip    Gossip    `toml:"Gossip"`
	Storage   Storage   `toml:"Storage"`
	Metrics   Metrics   `toml:"Metrics"`
	Wallet    Wallet    `toml:"Wallet"`
	DAO       DAO       `toml:"DAO"`
	RateLimit RateLimit `toml:"RateLimit"`
}

// Load reads path, creating a default configuration file (with a freshly
// generated node key) the first time a node runs against an empty data
// directory. Sections an existing file omits keep their Default* values,
// except Storage, whose defaults depend on DataDir.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Gossip:    DefaultGossip(),
		Metrics:   DefaultMetrics(),
		Wallet:    DefaultWallet(),
		DAO:       DefaultDAO(),
		RateLimit: DefaultRateLimit(),
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if cfg.NodeKey == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.NodeKey = hex.EncodeToString(key.Bytes())
		if err := rewrite(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, ValidateConfig(*cfg)
}

func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		ListenAddress: ":7101",
		RPCAddress:    ":7180",
		DataDir:       "./clawnet-data",
		NodeKey:       hex.EncodeToString(key.Bytes()),
		Gossip:        DefaultGossip(),
		Storage:       DefaultStorage("./clawnet-data"),
		Metrics:       DefaultMetrics(),
		Wallet:        DefaultWallet(),
		DAO:           DefaultDAO(),
		RateLimit:     DefaultRateLimit(),
	}
	if err := rewrite(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func rewrite(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

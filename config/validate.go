package config

import "fmt"

// ValidateConfig rejects configurations that would let the node start in a
// state the engine or storage layer can't actually operate in.
func ValidateConfig(c Config) error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("config: ListenAddress is required")
	}
	if c.Storage.EventLogDir == "" || c.Storage.SnapshotDir == "" {
		return fmt.Errorf("config: storage directories are required")
	}
	if c.Storage.SnapshotEach <= 0 {
		return fmt.Errorf("config: Storage.SnapshotEveryNEvents must be positive")
	}
	if c.Gossip.ReorderWindow < 0 {
		return fmt.Errorf("config: Gossip.ReorderWindowMs must not be negative")
	}
	if c.Gossip.InboundQueue <= 0 {
		return fmt.Errorf("config: Gossip.InboundQueueSize must be positive")
	}
	if c.DAO.TreasuryAddress == "" {
		return fmt.Errorf("config: DAO.TreasuryAddress is required")
	}
	if c.RateLimit.EventsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: RateLimit must have a positive rate and burst")
	}
	return nil
}

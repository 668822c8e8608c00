package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig.Validate())
}

func TestValidateRejectsNonPositiveBlockInterval(t *testing.T) {
	cfg := DefaultConfig
	cfg.BlockInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroCATLifetime(t *testing.T) {
	cfg := DefaultConfig
	cfg.CATLifetimeBlocks = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveChannelBuffer(t *testing.T) {
	cfg := DefaultConfig
	cfg.ChannelBufferSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroAccounts(t *testing.T) {
	cfg := DefaultConfig
	cfg.NumAccounts = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/path/catsim.toml")
	assert.Error(t, err)
}

func TestDefaultConfigFields(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, DefaultConfig.BlockInterval)
	assert.Equal(t, 2, DefaultConfig.NumChains)
	assert.False(t, DefaultConfig.AllowCATPendingDependencies)
}

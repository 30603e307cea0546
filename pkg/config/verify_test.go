package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.Destination = "@channel"
	return cfg
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", modify: func(cfg *Config) {}},
		{name: "missing feed url", modify: func(cfg *Config) { cfg.Feed.URL = "" }, wantErr: true, errMsg: "feed.url is required"},
		{name: "unknown format", modify: func(cfg *Config) { cfg.Feed.Format = "atom" }, wantErr: true, errMsg: "feed.format must be one of"},
		{name: "unknown storage", modify: func(cfg *Config) { cfg.Storage.Type = "redis" }, wantErr: true, errMsg: "storage.type must be one of"},
		{name: "chunk too long", modify: func(cfg *Config) { cfg.Message.MaxChunkLen = 4001 }, wantErr: true, errMsg: "message.max_chunk_len must be at most 4000"},
		{name: "chunk too short", modify: func(cfg *Config) { cfg.Message.MaxChunkLen = 0 }, wantErr: true, errMsg: "message.max_chunk_len must be at least 1"},
		{name: "negative rate", modify: func(cfg *Config) { cfg.Telegram.RateLimit = -0.5 }, wantErr: true, errMsg: "telegram.rate_limit must be at least 0"},
		{name: "empty listen is fine", modify: func(cfg *Config) { cfg.Server.Listen = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(cfg)
			err := VerifyAgainstEmbeddedSchema(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	schema := GenerateSchema()
	require.NotNil(t, schema)

	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var generated, embedded map[string]any
	require.NoError(t, json.Unmarshal(data, &generated))
	require.NoError(t, json.Unmarshal(embeddedSchema, &embedded))

	genDefs, ok := generated["$defs"].(map[string]any)
	require.True(t, ok)
	embDefs, ok := embedded["$defs"].(map[string]any)
	require.True(t, ok)

	// embedded schema has to be regenerated when config structs change
	for name := range genDefs {
		assert.Contains(t, embDefs, name)
	}
	feedDef, ok := genDefs["FeedConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"url"}, feedDef["required"])
	configDef, ok := genDefs["Config"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, configDef, "required")
}

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/virtual-factory/paperline/internal/config"
)

func TestGatePasses_Unset(t *testing.T) {
	var buf bytes.Buffer
	ok := gatePasses(config.RunGate(""), "RUN_SCRAPER", "scraper", &buf)

	assert.False(t, ok)
	assert.Equal(t, "Environment variable 'RUN_SCRAPER' is not set.\n", buf.String())
}

func TestGatePasses_Disabled(t *testing.T) {
	var buf bytes.Buffer
	ok := gatePasses(config.RunGate("false"), "RUN_SCRAPER", "scraper", &buf)

	assert.False(t, ok)
	assert.Equal(t,
		"Not running scraper.\n"+
			"Set the environment variable \"RUN_SCRAPER=true\" to run the scraper.\n",
		buf.String())
}

func TestGatePasses_Enabled(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "True"} {
		var buf bytes.Buffer
		ok := gatePasses(config.RunGate(v), "RUN_SCRAPER", "scraper", &buf)

		assert.True(t, ok, v)
		assert.Empty(t, buf.String())
	}
}

func TestGatePasses_EmbedMessages(t *testing.T) {
	var buf bytes.Buffer
	ok := gatePasses(config.RunGate("no"), "RUN_EMBED_GEN", "embedding generator", &buf)

	assert.False(t, ok)
	assert.Equal(t,
		"Not running embedding generator.\n"+
			"Set the environment variable \"RUN_EMBED_GEN=true\" to run the embedding generator.\n",
		buf.String())
}

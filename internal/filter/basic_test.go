package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblock-archive/auctions/internal/auction"
)

func TestBasicCompilerMatchesKnownFields(t *testing.T) {
	pred, err := BasicCompiler{}.Compile(map[string]string{"tier": "LEGENDARY", "bin": "true"})
	require.NoError(t, err)

	assert.True(t, pred(auction.Auction{Tier: "LEGENDARY", BIN: true}))
	assert.False(t, pred(auction.Auction{Tier: "LEGENDARY", BIN: false}))
	assert.False(t, pred(auction.Auction{Tier: "EPIC", BIN: true}))
}

func TestBasicCompilerFallsBackToAttributes(t *testing.T) {
	pred, err := BasicCompiler{}.Compile(map[string]string{"enchant_sharpness": "5"})
	require.NoError(t, err)

	assert.True(t, pred(auction.Auction{Attributes: map[string]string{"enchant_sharpness": "5"}}))
	assert.False(t, pred(auction.Auction{Attributes: map[string]string{"enchant_sharpness": "4"}}))
	assert.False(t, pred(auction.Auction{}))
}

func TestBasicCompilerEmptyFilterMatchesEverything(t *testing.T) {
	pred, err := BasicCompiler{}.Compile(map[string]string{})
	require.NoError(t, err)

	assert.True(t, pred(auction.Auction{}))
}

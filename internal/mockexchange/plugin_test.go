package mockexchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizePair_SplitsUnseparatedSymbol(t *testing.T) {
	assert.Equal(t, "BTC-USDT", CanonicalizePair("BTCUSDT"))
	assert.Equal(t, "ETH-USD", CanonicalizePair("ETHUSD"))
	assert.Equal(t, "SOL-USDT", CanonicalizePair("solusdt"))
}

func TestCanonicalizePair_PassesThroughSeparated(t *testing.T) {
	assert.Equal(t, "BTC-USDT", CanonicalizePair("BTC-USDT"))
}

func TestCanonicalizePair_StripsSwapSuffix(t *testing.T) {
	assert.Equal(t, "BTC-USDT", CanonicalizePair("BTC-USDT-SWAP"))
}

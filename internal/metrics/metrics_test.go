package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(rpcAttempts.WithLabelValues("getblockcount", "retry"))
	RPCAttempt("getblockcount", "retry")
	RPCAttempt("getblockcount", "retry")
	after := testutil.ToFloat64(rpcAttempts.WithLabelValues("getblockcount", "retry"))
	assert.Equal(t, before+2, after)

	before = testutil.ToFloat64(oracleQuotes.WithLabelValues("price", "default", "true"))
	OracleQuote("price", "default", true)
	assert.Equal(t, before+1, testutil.ToFloat64(oracleQuotes.WithLabelValues("price", "default", "true")))

	before = testutil.ToFloat64(rpcFallbacks.WithLabelValues("failed"))
	RPCFallback(false)
	assert.Equal(t, before+1, testutil.ToFloat64(rpcFallbacks.WithLabelValues("failed")))
}

func TestHandler(t *testing.T) {
	CacheLookup("memory", "hit")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "feeplanner_cache_lookups_total"))
}

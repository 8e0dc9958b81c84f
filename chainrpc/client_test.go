package chainrpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// rpcStub answers the two JSON-RPC methods the client uses.
func rpcStub(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result string
		switch req.Method {
		case "eth_chainId":
			result = "0x1"
		case "eth_getBalance":
			result = "0xde0b6b3a7640000" // 1 ether in wei
		default:
			t.Fatalf("unexpected RPC method %s", req.Method)
		}

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientQueries(t *testing.T) {
	srv := rpcStub(t)
	defer srv.Close()
	ctx := context.Background()

	c, err := Dial(ctx, srv.URL, testLogger())
	require.NoError(t, err)
	defer c.Close()

	id, err := c.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), id)

	balance, err := c.Balance(ctx, "0x000000000000000000000000000000000000dEaD")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
}

func TestClientRejectsBadAddress(t *testing.T) {
	srv := rpcStub(t)
	defer srv.Close()
	ctx := context.Background()

	c, err := Dial(ctx, srv.URL, testLogger())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Balance(ctx, "not-an-address")
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

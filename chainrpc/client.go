// Package chainrpc reads wallet account state from an Ethereum JSON-RPC
// endpoint.
package chainrpc

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/huahuahua1223/w3a-mpc/interfaces"
)

// Client wraps an Ethereum RPC connection for the read-only account queries
// the wallet needs.
type Client struct {
	eth *ethclient.Client
	log *slog.Logger
}

// Dial connects to the JSON-RPC endpoint at rawURL.
func Dial(ctx context.Context, rawURL string, log *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return &Client{eth: eth, log: log}, nil
}

// ChainID returns the chain identifier of the connected network.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	return id, nil
}

// Balance returns the latest wei balance of the given account address.
func (c *Client) Balance(ctx context.Context, addressHex string) (*big.Int, error) {
	if !common.IsHexAddress(addressHex) {
		return nil, fmt.Errorf("%w: invalid account address %q", interfaces.ErrValidation, addressHex)
	}

	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(addressHex), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance: %w", err)
	}

	c.log.Debug("Fetched account balance",
		slog.String("address", addressHex),
		slog.String("wei", balance.String()))
	return balance, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider is the read-only view of a network that bindings share.
type Provider interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Client wraps go-ethereum RPC and provides helper methods.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// Networks holds one shared client per network name.
type Networks struct {
	clients map[string]*Client
}

// DialNetworks connects to every network in urls (name -> rpc url).
func DialNetworks(ctx context.Context, urls map[string]string) (*Networks, error) {
	n := &Networks{clients: make(map[string]*Client, len(urls))}
	for name, url := range urls {
		client, err := NewClient(ctx, url)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("dial %s: %w", name, err)
		}
		n.clients[name] = client
	}
	return n, nil
}

// Providers returns the clients as providers keyed by network name.
func (n *Networks) Providers() map[string]Provider {
	out := make(map[string]Provider, len(n.clients))
	for name, client := range n.clients {
		out[name] = client
	}
	return out
}

// Close closes every client.
func (n *Networks) Close() {
	for _, client := range n.clients {
		client.Close()
	}
}

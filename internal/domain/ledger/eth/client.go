package eth

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/scailotto/backend/pkg/xcontext"
)

const (
	RpcTimeOut      = time.Second * 5
	MaxShuffleTimes = 20

	// Nodes lagging more than this many blocks behind the median are skipped.
	MaxHeightDistance = 5
)

// A wrapper around ethclient.Client so that the ledger can be tested with a
// mock. It satisfies bind.ContractCaller.
type EthClient interface {
	Start(ctx context.Context)

	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// Default implementation of EthClient. Public RPCs are often unstable, so the
// client keeps every configured RPC and only uses the ones close to the
// median block height.
type defaultEthClient struct {
	chain    string
	allRpcs  []string
	refresh  time.Duration
	dialFunc func(rpc string) (*ethclient.Client, error)

	clients []*ethclient.Client
	rpcs    []string

	mutex sync.RWMutex
}

func NewEthClient(chain string, rpcs []string, refresh time.Duration) *defaultEthClient {
	return &defaultEthClient{
		chain:    chain,
		allRpcs:  rpcs,
		refresh:  refresh,
		dialFunc: ethclient.Dial,
	}
}

func (c *defaultEthClient) Start(ctx context.Context) {
	c.updateRpcs(ctx)
	if c.refresh > 0 {
		go c.loopCheck(ctx)
	}
}

func (c *defaultEthClient) loopCheck(ctx context.Context) {
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.updateRpcs(ctx)
		}
	}
}

func (c *defaultEthClient) updateRpcs(ctx context.Context) {
	rpcs, clients := c.getRpcsHealthiness(ctx, c.allRpcs)
	if len(clients) == 0 {
		xcontext.Logger(ctx).Warnf("No healthy rpc for chain %s, keep the old ones", c.chain)
		return
	}

	c.mutex.Lock()
	oldClients := c.clients
	c.rpcs, c.clients = rpcs, clients
	c.mutex.Unlock()

	for _, client := range oldClients {
		client.Close()
	}
}

func (c *defaultEthClient) getRpcsHealthiness(ctx context.Context, allRpcs []string) ([]string, []*ethclient.Client) {
	type healthyNode struct {
		client *ethclient.Client
		rpc    string
		height int64
	}

	nodes := make([]*healthyNode, 0)
	for _, rpc := range allRpcs {
		client, err := c.dialFunc(rpc)
		if err != nil {
			xcontext.Logger(ctx).Warnf("Cannot dial rpc %s: %v", rpc, err)
			continue
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, RpcTimeOut)
		height, err := client.BlockNumber(timeoutCtx)
		cancel()
		if err != nil {
			xcontext.Logger(ctx).Warnf("Rpc %s is unhealthy: %v", rpc, err)
			client.Close()
			continue
		}

		nodes = append(nodes, &healthyNode{client: client, rpc: rpc, height: int64(height)})
	}

	if len(nodes) == 0 {
		return nil, nil
	}

	// Sorts all nodes by height
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].height > nodes[j].height
	})

	rpcs := make([]string, 0, len(nodes))
	clients := make([]*ethclient.Client, 0, len(nodes))
	median := nodes[len(nodes)/2].height
	for _, node := range nodes {
		distance := node.height - median
		if distance < 0 {
			distance = -distance
		}

		if distance < MaxHeightDistance {
			rpcs = append(rpcs, node.rpc)
			clients = append(clients, node.client)
		} else {
			node.client.Close()
		}
	}

	xcontext.Logger(ctx).Infof("Healthy rpcs for chain %s: %v", c.chain, rpcs)
	return rpcs, clients
}

func (c *defaultEthClient) shuffle() ([]*ethclient.Client, []string) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	n := len(c.clients)
	if n == 0 {
		return nil, nil
	}

	clients := make([]*ethclient.Client, n)
	rpcs := make([]string, n)
	copy(clients, c.clients)
	copy(rpcs, c.rpcs)

	for i := 0; i < MaxShuffleTimes; i++ {
		x, y := rand.Intn(n), rand.Intn(n)
		clients[x], clients[y] = clients[y], clients[x]
		rpcs[x], rpcs[y] = rpcs[y], rpcs[x]
	}

	return clients, rpcs
}

func (c *defaultEthClient) getHealthyClient(ctx context.Context) (*ethclient.Client, string) {
	c.mutex.RLock()
	empty := len(c.clients) == 0
	c.mutex.RUnlock()

	if empty {
		c.updateRpcs(ctx)
	}

	// Shuffle rpcs so that the load is spread over healthy rpcs.
	clients, rpcs := c.shuffle()
	if len(clients) == 0 {
		return nil, ""
	}

	return clients[0], rpcs[0]
}

func (c *defaultEthClient) execute(
	ctx context.Context, f func(client *ethclient.Client, rpc string) (any, error),
) (any, error) {
	client, rpc := c.getHealthyClient(ctx)
	if client == nil {
		return nil, fmt.Errorf("no healthy rpc for chain %s", c.chain)
	}

	ret, err := f(client, rpc)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Rpc %s of chain %s failed: %v", rpc, c.chain, err)
	}

	return ret, err
}

func (c *defaultEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	num, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.BlockNumber(ctx)
	})
	if err != nil {
		return 0, err
	}

	return num.(uint64), nil
}

func (c *defaultEthClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	code, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.CodeAt(ctx, account, blockNumber)
	})
	if err != nil {
		return nil, err
	}

	return code.([]byte), nil
}

func (c *defaultEthClient) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	result, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.CallContract(ctx, call, blockNumber)
	})
	if err != nil {
		return nil, err
	}

	return result.([]byte), nil
}

func (c *defaultEthClient) TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	type txWithPending struct {
		tx        *ethtypes.Transaction
		isPending bool
	}

	result, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		tx, isPending, err := client.TransactionByHash(ctx, hash)
		return txWithPending{tx: tx, isPending: isPending}, err
	})
	if err != nil {
		return nil, false, err
	}

	r := result.(txWithPending)
	return r.tx, r.isPending, nil
}

func (c *defaultEthClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	receipt, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.TransactionReceipt(ctx, txHash)
	})
	if err != nil {
		return nil, err
	}

	return receipt.(*ethtypes.Receipt), nil
}

func (c *defaultEthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	gas, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, err
	}

	return gas.(*big.Int), nil
}

func (c *defaultEthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	gas, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.EstimateGas(ctx, msg)
	})
	if err != nil {
		return 0, err
	}

	return gas.(uint64), nil
}

func (c *defaultEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	logs, err := c.execute(ctx, func(client *ethclient.Client, rpc string) (any, error) {
		return client.FilterLogs(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	return logs.([]ethtypes.Log), nil
}

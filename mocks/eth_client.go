package mocks

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

type EthClient struct {
	mock.Mock
}

func (c *EthClient) Start(context.Context) {
}

func (c *EthClient) BlockNumber(arg1 context.Context) (uint64, error) {
	args := c.Called(arg1)

	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(uint64), args.Error(1)
}

func (c *EthClient) CodeAt(arg1 context.Context, arg2 common.Address, arg3 *big.Int) ([]byte, error) {
	args := c.Called(arg1, arg2, arg3)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (c *EthClient) CallContract(arg1 context.Context, arg2 ethereum.CallMsg, arg3 *big.Int) ([]byte, error) {
	args := c.Called(arg1, arg2, arg3)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (c *EthClient) TransactionByHash(arg1 context.Context, arg2 common.Hash) (*ethtypes.Transaction, bool, error) {
	args := c.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*ethtypes.Transaction), args.Bool(1), args.Error(2)
}

func (c *EthClient) TransactionReceipt(arg1 context.Context, arg2 common.Hash) (*ethtypes.Receipt, error) {
	args := c.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ethtypes.Receipt), args.Error(1)
}

func (c *EthClient) SuggestGasPrice(arg1 context.Context) (*big.Int, error) {
	args := c.Called(arg1)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (c *EthClient) EstimateGas(arg1 context.Context, arg2 ethereum.CallMsg) (uint64, error) {
	args := c.Called(arg1, arg2)

	if args.Get(0) == nil {
		return 0, args.Error(1)
	}
	return args.Get(0).(uint64), args.Error(1)
}

func (c *EthClient) FilterLogs(arg1 context.Context, arg2 ethereum.FilterQuery) ([]ethtypes.Log, error) {
	args := c.Called(arg1, arg2)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ethtypes.Log), args.Error(1)
}

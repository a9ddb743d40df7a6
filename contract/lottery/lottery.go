// Package lottery is a Go binding around the lottery contract. Only the calls
// and events used by the backend are exposed.
package lottery

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodPurchaseTicket = "purchaseTicket"
	MethodBuyTicket      = "buyTicket"

	EventTicketPurchased = "TicketPurchased"
	EventTicketBought    = "TicketBought"
	EventWinnerDrawn     = "WinnerDrawn"
)

// LotteryMetaData contains all meta data concerning the Lottery contract.
var LotteryMetaData = &bind.MetaData{
	ABI: `[
	{"type":"function","name":"purchaseTicket","stateMutability":"payable","inputs":[{"name":"ticketId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"buyTicket","stateMutability":"payable","inputs":[{"name":"ticketId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"ticketPrice","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"currentRound","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"totalTickets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getPurchasedTickets","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getAvailableTickets","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getUserTickets","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getTicketOwner","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"},{"name":"ticketId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"drawWinner","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"withdrawPrize","stateMutability":"nonpayable","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"TicketPurchased","anonymous":false,"inputs":[{"name":"ticketId","type":"uint256","indexed":true},{"name":"buyer","type":"address","indexed":true},{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"TicketBought","anonymous":false,"inputs":[{"name":"ticketId","type":"uint256","indexed":true},{"name":"buyer","type":"address","indexed":true},{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"WinnerDrawn","anonymous":false,"inputs":[{"name":"roundId","type":"uint256","indexed":true},{"name":"winningTicket","type":"uint256","indexed":true},{"name":"winner","type":"address","indexed":true},{"name":"prize","type":"uint256","indexed":false}]}
]`,
}

// LotteryCaller is a read-only binding around the contract.
type LotteryCaller struct {
	contract *bind.BoundContract
}

func NewLotteryCaller(address common.Address, caller bind.ContractCaller) (*LotteryCaller, error) {
	parsed, err := LotteryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(address, *parsed, caller, nil, nil)
	return &LotteryCaller{contract: contract}, nil
}

func (c *LotteryCaller) CurrentRound(opts *bind.CallOpts) (*big.Int, error) {
	return c.callUint(opts, "currentRound")
}

func (c *LotteryCaller) TicketPrice(opts *bind.CallOpts) (*big.Int, error) {
	return c.callUint(opts, "ticketPrice")
}

func (c *LotteryCaller) TotalTickets(opts *bind.CallOpts) (*big.Int, error) {
	return c.callUint(opts, "totalTickets")
}

func (c *LotteryCaller) GetPurchasedTickets(opts *bind.CallOpts, roundID *big.Int) ([]*big.Int, error) {
	return c.callUintArray(opts, "getPurchasedTickets", roundID)
}

func (c *LotteryCaller) GetAvailableTickets(opts *bind.CallOpts, roundID *big.Int) ([]*big.Int, error) {
	return c.callUintArray(opts, "getAvailableTickets", roundID)
}

func (c *LotteryCaller) GetUserTickets(opts *bind.CallOpts, roundID *big.Int, user common.Address) ([]*big.Int, error) {
	return c.callUintArray(opts, "getUserTickets", roundID, user)
}

func (c *LotteryCaller) GetTicketOwner(opts *bind.CallOpts, roundID, ticketID *big.Int) (common.Address, error) {
	var out []any
	if err := c.contract.Call(opts, &out, "getTicketOwner", roundID, ticketID); err != nil {
		return common.Address{}, err
	}

	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *LotteryCaller) callUint(opts *bind.CallOpts, method string, params ...any) (*big.Int, error) {
	var out []any
	if err := c.contract.Call(opts, &out, method, params...); err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *LotteryCaller) callUintArray(opts *bind.CallOpts, method string, params ...any) ([]*big.Int, error) {
	var out []any
	if err := c.contract.Call(opts, &out, method, params...); err != nil {
		return nil, err
	}

	return *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int), nil
}

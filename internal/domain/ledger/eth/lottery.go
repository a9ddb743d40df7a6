package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/scailotto/backend/config"
	"github.com/scailotto/backend/contract/lottery"
	"github.com/scailotto/backend/internal/domain/ledger"
	"github.com/scailotto/backend/pkg/ethutil"
	"github.com/scailotto/backend/pkg/xcontext"
)

const (
	// GasBufferPercent is added on top of the estimated gas.
	GasBufferPercent = 20

	// LookupAttempts bounds how many times an attached transaction is looked
	// up before it is considered unknown.
	LookupAttempts = 3
)

var _ ledger.Ledger = (*Lottery)(nil)

// Lottery reads and verifies purchases on the lottery contract of one EVM
// network.
type Lottery struct {
	network   string
	address   common.Address
	fromBlock uint64

	abi    abi.ABI
	client EthClient
	caller *lottery.LotteryCaller
	method PurchaseMethod

	defaultPrice    *big.Int
	defaultFee      *big.Int
	confirmations   uint64
	finalityTimeout time.Duration
	pollInterval    time.Duration
}

func NewLottery(ctx context.Context, network string, cfg config.NetworkConfigs, client EthClient) (*Lottery, error) {
	lotteryCfg := xcontext.Configs(ctx).Lottery

	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q of network %s", cfg.ContractAddress, network)
	}
	address := common.HexToAddress(cfg.ContractAddress)

	parsed, err := lottery.LotteryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}

	caller, err := lottery.NewLotteryCaller(address, client)
	if err != nil {
		return nil, err
	}

	defaultPrice, err := ethutil.ParseEther(lotteryCfg.DefaultTicketPrice)
	if err != nil {
		return nil, err
	}

	defaultFee, err := ethutil.ParseEther(lotteryCfg.DefaultFee)
	if err != nil {
		return nil, err
	}

	l := &Lottery{
		network:         network,
		address:         address,
		fromBlock:       cfg.FromBlock,
		abi:             *parsed,
		client:          client,
		caller:          caller,
		defaultPrice:    defaultPrice,
		defaultFee:      defaultFee,
		confirmations:   lotteryCfg.Confirmations,
		finalityTimeout: lotteryCfg.FinalityTimeout.Duration,
		pollInterval:    lotteryCfg.ReceiptPollInterval.Duration,
	}

	code, err := client.CodeAt(ctx, address, nil)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot read contract code of %s, assume %s: %v",
			network, lottery.MethodPurchaseTicket, err)
		l.method = PurchaseMethod{method: parsed.Methods[lottery.MethodPurchaseTicket]}
		return l, nil
	}

	l.method, err = ResolvePurchaseMethod(*parsed, code)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", network, err)
	}

	xcontext.Logger(ctx).Infof("Network %s purchases tickets through %s", network, l.method.Name())
	return l, nil
}

func (l *Lottery) Network() string {
	return l.network
}

func (l *Lottery) PurchaseMethod() PurchaseMethod {
	return l.method
}

func (l *Lottery) CurrentRoundID(ctx context.Context) (int64, error) {
	round, err := l.caller.CurrentRound(&bind.CallOpts{Context: ctx})
	if err != nil {
		return 0, unavailable(err)
	}

	return round.Int64(), nil
}

func (l *Lottery) TicketPrice(ctx context.Context) *big.Int {
	price, err := l.caller.TicketPrice(&bind.CallOpts{Context: ctx})
	if err != nil || price == nil || price.Sign() <= 0 {
		xcontext.Logger(ctx).Debugf("Use default ticket price of %s: %v", l.network, err)
		return new(big.Int).Set(l.defaultPrice)
	}

	return price
}

func (l *Lottery) PurchasedTicketIDs(ctx context.Context, roundID int64) ([]int, error) {
	ids, err := l.caller.GetPurchasedTickets(&bind.CallOpts{Context: ctx}, big.NewInt(roundID))
	if err != nil {
		return nil, unavailable(err)
	}

	return toInts(ids), nil
}

func (l *Lottery) AvailableTicketIDs(ctx context.Context, roundID int64) ([]int, error) {
	ids, err := l.caller.GetAvailableTickets(&bind.CallOpts{Context: ctx}, big.NewInt(roundID))
	if err != nil {
		return nil, unavailable(err)
	}

	return toInts(ids), nil
}

func (l *Lottery) UserTicketIDs(ctx context.Context, roundID int64, address string) ([]int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	ids, err := l.caller.GetUserTickets(
		&bind.CallOpts{Context: ctx}, big.NewInt(roundID), common.HexToAddress(address))
	if err != nil {
		return nil, unavailable(err)
	}

	return toInts(ids), nil
}

func (l *Lottery) TicketOwner(ctx context.Context, roundID int64, index int) (string, error) {
	owner, err := l.caller.GetTicketOwner(
		&bind.CallOpts{Context: ctx}, big.NewInt(roundID), big.NewInt(int64(index)))
	if err != nil {
		return "", unavailable(err)
	}

	if owner == (common.Address{}) {
		return "", nil
	}

	return ethutil.NormalizeAddress(owner.Hex()), nil
}

func (l *Lottery) PurchaseTxHash(ctx context.Context, index int, owner string) (string, error) {
	if !common.IsHexAddress(owner) {
		return "", nil
	}

	logs, err := l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(l.fromBlock),
		Addresses: []common.Address{l.address},
		Topics: [][]common.Hash{
			{l.abi.Events[lottery.EventTicketPurchased].ID, l.abi.Events[lottery.EventTicketBought].ID},
			{common.BigToHash(big.NewInt(int64(index)))},
			{common.BytesToHash(common.HexToAddress(owner).Bytes())},
		},
	})
	if err != nil {
		return "", unavailable(err)
	}

	if len(logs) == 0 {
		return "", nil
	}

	return logs[len(logs)-1].TxHash.Hex(), nil
}

// SubmitPurchase accepts a transaction broadcast by the buyer's wallet once it
// proves to buy the requested ticket for at least its price.
func (l *Lottery) SubmitPurchase(ctx context.Context, req ledger.SubmitRequest) (string, error) {
	if !ethutil.IsTxHash(req.TxHash) {
		return "", fmt.Errorf("%w: malformed hash %q", ledger.ErrInvalidTransaction, req.TxHash)
	}

	tx, isPending, err := l.lookupTransaction(ctx, common.HexToHash(req.TxHash))
	if err != nil {
		return "", err
	}

	if tx.To() == nil || *tx.To() != l.address {
		return "", fmt.Errorf("%w: transaction does not target the lottery", ledger.ErrInvalidTransaction)
	}

	index, ok := l.method.Unpack(tx.Data())
	if !ok || index != req.TicketIndex {
		return "", fmt.Errorf("%w: transaction does not buy ticket %d", ledger.ErrInvalidTransaction, req.TicketIndex)
	}

	if req.Amount != nil && tx.Value().Cmp(req.Amount) < 0 {
		return "", fmt.Errorf("%w: paid %s, need %s", ledger.ErrInsufficientFunds,
			ethutil.FormatEther(tx.Value()), ethutil.FormatEther(req.Amount))
	}

	sender, err := ethtypes.Sender(signerOf(tx), tx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ledger.ErrInvalidTransaction, err)
	}

	if !ethutil.SameAddress(sender.Hex(), req.Buyer) {
		return "", fmt.Errorf("%w: transaction is signed by %s", ledger.ErrInvalidTransaction, sender.Hex())
	}

	if !isPending {
		receipt, err := l.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt.Status == ethtypes.ReceiptStatusFailed {
			return "", fmt.Errorf("%w: execution reverted", ledger.ErrTicketUnavailable)
		}
	}

	return tx.Hash().Hex(), nil
}

// lookupTransaction gives a freshly broadcast transaction a few poll intervals
// to reach the node.
func (l *Lottery) lookupTransaction(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	for attempt := 1; ; attempt++ {
		tx, isPending, err := l.client.TransactionByHash(ctx, hash)
		if err == nil {
			return tx, isPending, nil
		}

		if !errors.Is(err, ethereum.NotFound) {
			return nil, false, ledger.Classify(err)
		}

		if attempt >= LookupAttempts {
			return nil, false, fmt.Errorf("%w: %s", ledger.ErrTransactionNotFound, hash.Hex())
		}

		select {
		case <-ctx.Done():
			return nil, false, unavailable(ctx.Err())
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *Lottery) EstimateFee(ctx context.Context, index int, from string) *big.Int {
	fallback := new(big.Int).Set(l.defaultFee)

	data, err := l.method.Pack(index)
	if err != nil {
		return fallback
	}

	msg := ethereum.CallMsg{To: &l.address, Value: l.TicketPrice(ctx), Data: data}
	if common.IsHexAddress(from) {
		msg.From = common.HexToAddress(from)
	}

	gas, err := l.client.EstimateGas(ctx, msg)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot estimate gas of ticket %d on %s: %v", index, l.network, err)
		return fallback
	}
	gas += gas * GasBufferPercent / 100

	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		xcontext.Logger(ctx).Debugf("Cannot get gas price of %s: %v", l.network, err)
		return fallback
	}

	return new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice)
}

func (l *Lottery) AwaitFinality(ctx context.Context, txHash string) ledger.Outcome {
	ctx, cancel := context.WithTimeout(ctx, l.finalityTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	hash := common.HexToHash(txHash)
	for {
		if outcome, done := l.checkFinality(ctx, hash); done {
			return outcome
		}

		select {
		case <-ctx.Done():
			return ledger.OutcomePending
		case <-ticker.C:
		}
	}
}

func (l *Lottery) checkFinality(ctx context.Context, hash common.Hash) (ledger.Outcome, bool) {
	receipt, err := l.client.TransactionReceipt(ctx, hash)
	if err != nil || receipt == nil {
		return ledger.OutcomePending, false
	}

	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return ledger.OutcomeRejected, true
	}

	if l.confirmations <= 1 {
		return ledger.OutcomeCommitted, true
	}

	head, err := l.client.BlockNumber(ctx)
	if err != nil || receipt.BlockNumber == nil {
		return ledger.OutcomePending, false
	}

	if head+1 >= receipt.BlockNumber.Uint64()+l.confirmations {
		return ledger.OutcomeCommitted, true
	}

	return ledger.OutcomePending, false
}

func (l *Lottery) RoundWinner(ctx context.Context, roundID int64) (*ledger.Winner, error) {
	logs, err := l.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(l.fromBlock),
		Addresses: []common.Address{l.address},
		Topics: [][]common.Hash{
			{l.abi.Events[lottery.EventWinnerDrawn].ID},
			{common.BigToHash(big.NewInt(roundID))},
		},
	})
	if err != nil {
		return nil, unavailable(err)
	}

	if len(logs) == 0 {
		return nil, nil
	}

	log := logs[len(logs)-1]
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("%w: malformed %s log", ledger.ErrLedgerInconsistent, lottery.EventWinnerDrawn)
	}

	values, err := l.abi.Unpack(lottery.EventWinnerDrawn, log.Data)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("%w: cannot decode %s: %v", ledger.ErrLedgerInconsistent, lottery.EventWinnerDrawn, err)
	}

	prize, _ := values[0].(*big.Int)
	return &ledger.Winner{
		RoundID:     roundID,
		TicketIndex: int(new(big.Int).SetBytes(log.Topics[2].Bytes()).Int64()),
		Address:     ethutil.NormalizeAddress(common.BytesToAddress(log.Topics[3].Bytes()).Hex()),
		Prize:       prize,
		TxHash:      log.TxHash.Hex(),
	}, nil
}

func signerOf(tx *ethtypes.Transaction) ethtypes.Signer {
	if chainID := tx.ChainId(); chainID != nil && chainID.Sign() > 0 {
		return ethtypes.LatestSignerForChainID(chainID)
	}
	return ethtypes.HomesteadSigner{}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ledger.ErrLedgerUnavailable, err)
}

func toInts(ids []*big.Int) []int {
	result := make([]int, 0, len(ids))
	for _, id := range ids {
		result = append(result, int(id.Int64()))
	}
	return result
}

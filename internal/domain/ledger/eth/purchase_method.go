package eth

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/scailotto/backend/contract/lottery"
)

// Deployed versions of the contract name the payable purchase function
// differently, the first one found in the bytecode wins.
var purchaseMethodCandidates = []string{
	lottery.MethodPurchaseTicket,
	lottery.MethodBuyTicket,
}

type PurchaseMethod struct {
	method abi.Method
}

func (m PurchaseMethod) Name() string {
	return m.method.Name
}

func (m PurchaseMethod) Pack(index int) ([]byte, error) {
	args, err := m.method.Inputs.Pack(big.NewInt(int64(index)))
	if err != nil {
		return nil, err
	}

	return append(append([]byte{}, m.method.ID...), args...), nil
}

// Unpack returns the ticket index bought by calldata, false if calldata does
// not call this method.
func (m PurchaseMethod) Unpack(calldata []byte) (int, bool) {
	if len(calldata) < 4 || !bytes.Equal(calldata[:4], m.method.ID) {
		return 0, false
	}

	values, err := m.method.Inputs.Unpack(calldata[4:])
	if err != nil || len(values) != 1 {
		return 0, false
	}

	index, ok := values[0].(*big.Int)
	if !ok || !index.IsInt64() {
		return 0, false
	}

	return int(index.Int64()), true
}

// ResolvePurchaseMethod picks the purchase function exposed by code, the
// runtime bytecode of the deployed contract.
func ResolvePurchaseMethod(contractABI abi.ABI, code []byte) (PurchaseMethod, error) {
	if len(code) == 0 {
		return PurchaseMethod{}, errors.New("no contract deployed at address")
	}

	for _, name := range purchaseMethodCandidates {
		method, ok := contractABI.Methods[name]
		if !ok {
			continue
		}

		// The dispatcher compares calldata against every selector with PUSH4.
		if bytes.Contains(code, append([]byte{0x63}, method.ID...)) {
			return PurchaseMethod{method: method}, nil
		}
	}

	return PurchaseMethod{}, fmt.Errorf("contract exposes none of %v", purchaseMethodCandidates)
}

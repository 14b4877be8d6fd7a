package executor

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereumdegen/stark-guardian/internal/chain"
	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/model"
)

// Default protocol router contracts on Starknet mainnet. Overridable per
// deployment through Config.Contracts.
var defaultContracts = map[string]string{
	"nostra": "0x044debfe17e4d9a5a1e226dabaf286e72c9cc36abbe71c5b847e669da4503893",
	"zklend": "0x04c0a5193d58f74fbace4b74dcf65481e734ed1714121bdc571da345540efa05",
	"ekubo":  "0x00000005dd3d2f4429af886cd1a3b08289dbcea99a294197e9eb43b0e0325b4b",
}

// entryPoints maps an action to the protocol contract function it invokes.
var entryPoints = map[string]map[model.ActionKind]string{
	"nostra": {
		model.ActionRepayDebt:     "repay",
		model.ActionAddCollateral: "deposit",
		model.ActionPartialExit:   "withdraw",
		model.ActionFullExit:      "withdraw_all",
	},
	"zklend": {
		model.ActionRepayDebt:     "repay",
		model.ActionAddCollateral: "deposit",
		model.ActionPartialExit:   "withdraw",
		model.ActionFullExit:      "withdraw_all",
	},
	"ekubo": {
		model.ActionRecenterLP:    "collect_and_reposition",
		model.ActionFullExit:      "withdraw_liquidity",
		model.ActionWithdrawYield: "collect_fees",
	},
}

// feltDecimals scales native token amounts to on-chain integer units.
const feltDecimals = 18

// amountToFelts encodes a token amount as a uint256 split into low and high
// 128-bit felts.
func amountToFelts(amount float64) (low, high string) {
	scaled, _ := new(big.Float).Mul(
		big.NewFloat(amount),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(feltDecimals), nil)),
	).Int(nil)
	if scaled.Sign() < 0 {
		scaled.SetInt64(0)
	}

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	lowInt := new(big.Int).And(scaled, mask)
	highInt := new(big.Int).Rsh(scaled, 128)
	return hexutil.EncodeBig(lowInt), hexutil.EncodeBig(highInt)
}

// BuildCalldata assembles the felt array for a protective action: the
// protocol contract, the entry-point selector, the argument count, then
// the amount as uint256.
func BuildCalldata(action model.PlannedAction, contracts map[string]string) ([]string, error) {
	eps, ok := entryPoints[action.Protocol]
	if !ok {
		return nil, gerr.New(gerr.CodeUnsupported, fmt.Sprintf("no calldata builder for protocol %s", action.Protocol))
	}
	entryPoint, ok := eps[action.Kind]
	if !ok {
		return nil, gerr.New(gerr.CodeUnsupported,
			fmt.Sprintf("protocol %s does not support action %s", action.Protocol, action.Kind))
	}

	contract := contracts[action.Protocol]
	if contract == "" {
		contract = defaultContracts[action.Protocol]
	}

	low, high := amountToFelts(action.Amount)
	return []string{contract, chain.Selector(entryPoint), "0x2", low, high}, nil
}

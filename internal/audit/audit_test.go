package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereumdegen/stark-guardian/internal/chain"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/rs/zerolog"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "audit.db"), filepath.Join(dir, "audit.lock"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(id string, actions []model.ExecutionResult) model.RiskReport {
	return model.RiskReport{
		ReportID:              id,
		Timestamp:             time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Wallet:                "0xabc",
		PortfolioTotalUSD:     5500,
		PortfolioRiskScore:    62,
		PortfolioRiskCategory: model.CategoryWarning,
		Positions:             make([]model.ScoredPosition, 2),
		ActionsTaken:          actions,
	}
}

type fakeBroadcaster struct {
	calls    int
	calldata []string
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, tx chain.InvokeTx) (string, error) {
	f.calls++
	f.calldata = tx.Calldata
	return "0xaudittx", nil
}

func TestSaveAndList(t *testing.T) {
	store := tempStore(t)

	for _, id := range []string{"rg-11111111", "rg-22222222"} {
		entry, err := EntryFromReport(sampleReport(id, nil))
		if err != nil {
			t.Fatalf("EntryFromReport: %v", err)
		}
		if err := store.Save(entry); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	entries, err := store.List("", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].PositionsCount != 2 || entries[0].Wallet != "0xabc" {
		t.Errorf("entry = %+v", entries[0])
	}

	none, err := store.List("0xother", 10)
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("filtered entries = %d, want 0", len(none))
	}
}

func TestContentHashStableAndExcludesSelf(t *testing.T) {
	entry1, err := EntryFromReport(sampleReport("rg-33333333", nil))
	if err != nil {
		t.Fatalf("EntryFromReport: %v", err)
	}
	entry2, err := EntryFromReport(sampleReport("rg-33333333", nil))
	if err != nil {
		t.Fatalf("EntryFromReport: %v", err)
	}
	if entry1.ContentHash == "" || entry1.ContentHash != entry2.ContentHash {
		t.Errorf("hashes differ: %s vs %s", entry1.ContentHash, entry2.ContentHash)
	}

	other, _ := EntryFromReport(sampleReport("rg-44444444", nil))
	if other.ContentHash == entry1.ContentHash {
		t.Error("different reports share a content hash")
	}
}

func TestEntryCarriesReportActions(t *testing.T) {
	actions := []model.ExecutionResult{
		{Success: true, TxHash: "0x1"},
		{Success: true, TxHash: "0x2"},
	}
	entry, err := EntryFromReport(sampleReport("rg-55555555", actions))
	if err != nil {
		t.Fatalf("EntryFromReport: %v", err)
	}
	if len(entry.ActionsTaken) != 2 || entry.ActionsTaken[0].TxHash != "0x1" {
		t.Errorf("actions = %+v", entry.ActionsTaken)
	}
}

func TestRecordAnchorsOnChainOnlyWithActions(t *testing.T) {
	store := tempStore(t)
	fb := &fakeBroadcaster{}
	logger := NewLogger(store, fb, "0xauditcontract", "0xwallet", zerolog.Nop())

	// No actions: local only.
	if _, err := logger.Record(context.Background(), sampleReport("rg-66666666", nil)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if fb.calls != 0 {
		t.Fatal("on-chain write without actions")
	}

	// With actions: anchored.
	actions := []model.ExecutionResult{{Success: true, TxHash: "0x1"}}
	entry, err := logger.Record(context.Background(), sampleReport("rg-77777777", actions))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if fb.calls != 1 {
		t.Fatal("expected one on-chain write")
	}
	if entry.OnChainTx != "0xaudittx" {
		t.Errorf("onchain_tx = %s", entry.OnChainTx)
	}
	if fb.calldata[1] != chain.Selector("write_entry") {
		t.Errorf("selector = %s", fb.calldata[1])
	}
}

func TestRecordSkipsOnChainWhenUnconfigured(t *testing.T) {
	store := tempStore(t)
	fb := &fakeBroadcaster{}
	logger := NewLogger(store, fb, "0x0", "0xwallet", zerolog.Nop())

	actions := []model.ExecutionResult{{Success: true, TxHash: "0x1"}}
	entry, err := logger.Record(context.Background(), sampleReport("rg-88888888", actions))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if fb.calls != 0 || entry.OnChainTx != "" {
		t.Errorf("unexpected on-chain write: calls=%d tx=%s", fb.calls, entry.OnChainTx)
	}
}

package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ethereumdegen/stark-guardian/internal/chain"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/rs/zerolog"
)

// onChainMaxGasGwei caps the fee for the tiny on-chain log write.
const onChainMaxGasGwei = 5

// Broadcaster is the chain client slice used for on-chain anchoring.
type Broadcaster interface {
	Broadcast(ctx context.Context, tx chain.InvokeTx) (string, error)
}

// Logger writes guardian cycles to the local store and, when actions were
// taken and a log contract is configured, anchors the content hash on chain.
type Logger struct {
	store         *Store
	chain         Broadcaster
	contractAddr  string
	walletAddress string
	log           zerolog.Logger
}

func NewLogger(store *Store, chainClient Broadcaster, contractAddr, walletAddress string, log zerolog.Logger) *Logger {
	return &Logger{
		store:         store,
		chain:         chainClient,
		contractAddr:  contractAddr,
		walletAddress: walletAddress,
		log:           log,
	}
}

// EntryFromReport projects a risk report into an audit entry with its
// content hash. The report carries successful actions only, so the entry
// records it as-is.
func EntryFromReport(report model.RiskReport) (Entry, error) {
	entry := Entry{
		ReportID:              report.ReportID,
		Timestamp:             report.Timestamp,
		Wallet:                report.Wallet,
		PortfolioRiskScore:    report.PortfolioRiskScore,
		PortfolioRiskCategory: report.PortfolioRiskCategory,
		PositionsCount:        len(report.Positions),
		ActionsTaken:          report.ActionsTaken,
		PortfolioTotalUSD:     report.PortfolioTotalUSD,
	}

	hash, err := contentHash(entry)
	if err != nil {
		return Entry{}, err
	}
	entry.ContentHash = hash
	return entry, nil
}

// contentHash is the sha256 of the entry's canonical JSON form, excluding
// the hash field itself.
func contentHash(entry Entry) (string, error) {
	entry.ContentHash = ""
	entry.OnChainTx = ""
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("hash audit entry: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Record persists the report's audit entry. The local store always gets the
// entry; the on-chain contract is written only when actions were taken.
// On-chain failures are logged, not returned: the local record is the
// source of truth.
func (l *Logger) Record(ctx context.Context, report model.RiskReport) (Entry, error) {
	entry, err := EntryFromReport(report)
	if err != nil {
		return Entry{}, err
	}

	if len(entry.ActionsTaken) > 0 && l.configured() {
		if tx, err := l.writeOnChain(ctx, entry.ReportID, entry.ContentHash); err != nil {
			l.log.Warn().Err(err).Msg("on-chain audit write failed")
		} else {
			entry.OnChainTx = tx
			l.log.Info().Str("tx_hash", tx).Msg("on-chain audit entry written")
		}
	}

	if err := l.store.Save(entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (l *Logger) configured() bool {
	return l.chain != nil && l.contractAddr != "" && l.contractAddr != "0x0"
}

// writeOnChain invokes write_entry(report_id, content_hash) on the audit
// contract. Both arguments are truncated to fit a felt252.
func (l *Logger) writeOnChain(ctx context.Context, reportID, contentHash string) (string, error) {
	calldata := []string{
		l.contractAddr,
		chain.Selector("write_entry"),
		"0x2",
		feltString(reportID),
		feltString(contentHash),
	}
	tx := chain.NewInvokeTx(l.walletAddress, calldata, onChainMaxGasGwei)
	return l.chain.Broadcast(ctx, tx)
}

// feltString encodes a short string as a felt252, truncating to 31 bytes.
func feltString(s string) string {
	if len(s) > 31 {
		s = s[:31]
	}
	return "0x" + hex.EncodeToString([]byte(s))
}

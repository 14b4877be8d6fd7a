package guardian

import (
	"context"

	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/rs/zerolog"
)

// PollFeePayer settles the metered-access fee for one poll cycle.
type PollFeePayer interface {
	// PayPollFee returns true when the cycle is paid for. An unconfigured
	// payer always succeeds.
	PayPollFee(ctx context.Context, wallet string) bool
}

// X402Payer pays per-poll micropayments against an x402 endpoint.
type X402Payer struct {
	http     *httpx.Client
	endpoint string
	log      zerolog.Logger
}

func NewX402Payer(httpClient *httpx.Client, endpoint string, log zerolog.Logger) *X402Payer {
	return &X402Payer{http: httpClient, endpoint: endpoint, log: log}
}

func (p *X402Payer) PayPollFee(ctx context.Context, wallet string) bool {
	if p.endpoint == "" {
		return true
	}
	payload := map[string]string{"action": "guardian_poll", "wallet": wallet}
	if err := p.http.PostJSON(ctx, p.endpoint, payload, nil); err != nil {
		p.log.Warn().Err(err).Msg("x402 poll payment failed")
		return false
	}
	return true
}

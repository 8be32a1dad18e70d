package integrations

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/reconciliation"
)

// AuthorityClient asks the settlement authority for the canonical state of an installment
type AuthorityClient struct {
	client
}

// NewAuthorityClient creates an authority client
func NewAuthorityClient(baseURL, token string, timeout time.Duration) *AuthorityClient {
	return &AuthorityClient{client: newClient(baseURL, token, timeout)}
}

// ResolveInstallment calls POST /installments/{ref}/resolve with the local
// match as advisory input. Repeating the call for the same ref is safe.
func (c *AuthorityClient) ResolveInstallment(ctx context.Context, ref string, advisory reconciliation.AdvisoryInput) (reconciliation.Verdict, error) {
	req := advisoryDTO{
		State:         advisory.State,
		SettledAmount: advisory.SettledAmount,
	}
	if advisory.SettledDate != nil {
		d := advisory.SettledDate.Format(time.DateOnly)
		req.SettledDate = &d
	}

	var dto verdictDTO
	if err := c.postJSON(ctx, "/installments/"+escape(ref)+"/resolve", req, &dto); err != nil {
		return reconciliation.Verdict{}, fmt.Errorf("resolve installment %s: %w", ref, err)
	}

	verdict := reconciliation.Verdict{
		State:       dto.State,
		PendingRefs: dto.PendingRefs,
	}
	if dto.SettledDate != nil && *dto.SettledDate != "" {
		d, err := parseDate(*dto.SettledDate)
		if err != nil {
			return reconciliation.Verdict{}, fmt.Errorf("resolve installment %s: %w", ref, err)
		}
		verdict.SettledDate = &d
	}
	if dto.SettledAmount != nil {
		amount := units(*dto.SettledAmount)
		verdict.SettledAmount = &amount
	}
	return verdict, nil
}

package rategovernor

import (
	"net/http"

	"mediawatch/internal/domainutil"
	"mediawatch/internal/httpclient"
)

// GovernedDoer wraps an httpclient.Doer so that every request passes
// through the Governor's per-domain pacing, concurrency cap, and circuit
// breaker before being sent. It satisfies httpclient.Doer, so it can be
// passed directly to httpclient.New.
type GovernedDoer struct {
	inner   httpclient.Doer
	gov     *Governor
	profile httpclient.Profile
}

// NewGovernedDoer builds a GovernedDoer for the given profile.
func NewGovernedDoer(inner httpclient.Doer, gov *Governor, profile httpclient.Profile) *GovernedDoer {
	return &GovernedDoer{inner: inner, gov: gov, profile: profile}
}

func (d *GovernedDoer) Do(req *http.Request) (*http.Response, error) {
	domain := domainutil.EffectiveTLDPlusOne(req.URL.String())

	release, err := d.gov.Acquire(req.Context(), d.profile, domain)
	if err != nil {
		return nil, err
	}
	defer release()

	return d.inner.Do(req)
}

package middleware

import (
	authflow "github.com/Lasse-numerous/prisme-saas"
)

// RecordDecisions returns an Options.OnDecision hook that counts guard
// outcomes in the orchestrator's metrics.
func RecordDecisions(auth *authflow.Authenticator) func(Decision) {
	return func(d Decision) {
		switch d {
		case DecisionAllow:
			auth.Metrics().Inc(authflow.MetricGuardAllowed)
		case DecisionRedirect:
			auth.Metrics().Inc(authflow.MetricGuardRedirected)
		case DecisionForbid:
			auth.Metrics().Inc(authflow.MetricGuardForbidden)
		}
	}
}

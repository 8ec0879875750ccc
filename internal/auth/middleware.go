package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/shakhawat2680/autoseo/internal/httpserver"
	"github.com/shakhawat2680/autoseo/pkg/apierr"
	"github.com/shakhawat2680/autoseo/pkg/billing"
)

// Gate authenticates every request via the billing engine's combined
// credential + subscription + quota check (spec §4.D.2) and attaches the
// resulting Identity to the request context. A denial short-circuits the
// request with the status code spec §4.H maps each DenialReason to.
func Gate(engine *billing.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			opaque := r.Header.Get("X-API-Key")
			if opaque == "" {
				httpserver.RespondError(w, http.StatusUnauthorized, "invalid_credential", "missing X-API-Key header")
				return
			}

			result := engine.AuthenticateAndGate(r.Context(), opaque)
			if !result.Allowed {
				respondDenial(w, result)
				return
			}

			id := &Identity{TenantID: result.Tenant.ID, Tenant: result.Tenant}
			ctx := NewContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondDenial(w http.ResponseWriter, result billing.GateResult) {
	kind := denialKind(result.Reason)
	status := apierr.StatusCode(kind)

	httpserver.Respond(w, status, httpserver.ErrorResponse{
		Error:        string(kind),
		Message:      denialMessage(result.Reason),
		CurrentUsage: result.Detail.CurrentUsage,
		Limit:        result.Detail.Limit,
		Remaining:    result.Detail.Remaining,
		DaysLeft:     result.Detail.DaysLeft,
		BillingEnd:   result.Detail.BillingEnd,
		Status:       result.Detail.Status,
	})
}

func denialKind(reason billing.DenialReason) apierr.Kind {
	switch reason {
	case billing.DeniedSubscriptionInactive:
		return apierr.KindSubscriptionInactive
	case billing.DeniedRateLimitExceeded:
		return apierr.KindRateLimitExceeded
	default:
		return apierr.KindInvalidCredential
	}
}

func denialMessage(reason billing.DenialReason) string {
	switch reason {
	case billing.DeniedSubscriptionInactive:
		return "subscription is not active"
	case billing.DeniedRateLimitExceeded:
		return "quota exceeded for current billing cycle"
	default:
		return "invalid or unknown API credential"
	}
}

// AdminGate requires the X-Admin-Key header to match the configured shared
// secret (spec §4.H: "Admin operations require the shared-secret header;
// absence or mismatch yields 403").
func AdminGate(sharedSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Key")
			if sharedSecret == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(sharedSecret)) != 1 {
				httpserver.RespondError(w, http.StatusForbidden, string(apierr.KindUnauthorizedAdmin), "missing or invalid admin credential")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

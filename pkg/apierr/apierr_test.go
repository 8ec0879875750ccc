package apierr

import "testing"

func TestStatusCode(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidCredential, 401},
		{KindSubscriptionInactive, 402},
		{KindUnauthorizedAdmin, 403},
		{KindNotFound, 404},
		{KindDuplicateResource, 400},
		{KindInvalidPlan, 400},
		{KindRateLimitExceeded, 429},
		{KindInternal, 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := StatusCode(tt.kind); got != tt.want {
				t.Errorf("StatusCode(%s) = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	e := New(KindNotFound, "site not found")
	if e.Error() != "not_found: site not found" {
		t.Errorf("Error() = %q", e.Error())
	}

	bare := New(KindInternal, "")
	if bare.Error() != "internal_error" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

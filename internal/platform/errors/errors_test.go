package errors

import (
	"fmt"
	"testing"

	"github.com/lcalzada-xor/subsentry/internal/testutil"
)

func TestWrap(t *testing.T) {
	t.Run("wraps error with context", func(t *testing.T) {
		baseErr := New("base error")
		wrapped := Wrap(baseErr, "additional context")

		testutil.AssertNotNil(t, wrapped, "wrapped error should not be nil")
		testutil.AssertTrue(t, Is(wrapped, baseErr), "should be able to unwrap to base error")
		testutil.AssertTrue(t, wrapped.Error() == "additional context: base error", "error message should include context")
	})

	t.Run("returns nil when wrapping nil", func(t *testing.T) {
		wrapped := Wrap(nil, "context")
		testutil.AssertTrue(t, wrapped == nil, "wrapping nil should return nil")
	})

	t.Run("multiple wraps preserve chain", func(t *testing.T) {
		baseErr := New("base")
		wrapped1 := Wrap(baseErr, "layer 1")
		wrapped2 := Wrap(wrapped1, "layer 2")

		testutil.AssertTrue(t, Is(wrapped2, baseErr), "should unwrap to base error")
		testutil.AssertTrue(t, wrapped2.Error() == "layer 2: layer 1: base", "should show full chain")
	})
}

func TestWrapf(t *testing.T) {
	t.Run("wraps error with formatted context", func(t *testing.T) {
		baseErr := New("base error")
		wrapped := Wrapf(baseErr, "failed for scan=%d", 42)

		testutil.AssertNotNil(t, wrapped, "wrapped error should not be nil")
		testutil.AssertTrue(t, Is(wrapped, baseErr), "should be able to unwrap to base error")
		testutil.AssertTrue(t, wrapped.Error() == "failed for scan=42: base error", "error message should include formatted context")
	})

	t.Run("returns nil when wrapping nil", func(t *testing.T) {
		wrapped := Wrapf(nil, "context %s", "test")
		testutil.AssertTrue(t, wrapped == nil, "wrapping nil should return nil")
	})
}

func TestIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "matches sentinel error",
			err:    ErrTimeout,
			target: ErrTimeout,
			want:   true,
		},
		{
			name:   "matches wrapped sentinel error",
			err:    Wrap(ErrToolNotFound, "context"),
			target: ErrToolNotFound,
			want:   true,
		},
		{
			name:   "does not match different error",
			err:    ErrTimeout,
			target: ErrNotFound,
			want:   false,
		},
		{
			name:   "nil does not match",
			err:    nil,
			target: ErrTimeout,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Is(tt.err, tt.target)
			testutil.AssertEqual(t, got, tt.want, "Is() result should match expected")
		})
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrTimeout", ErrTimeout, "operation timed out"},
		{"ErrRateLimit", ErrRateLimit, "rate limit exceeded"},
		{"ErrNotFound", ErrNotFound, "resource not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrConnectionFailed", ErrConnectionFailed, "connection failed"},
		{"ErrUnauthorized", ErrUnauthorized, "authentication failed"},
		{"ErrInvalidResponse", ErrInvalidResponse, "invalid response"},
		{"ErrToolNotFound", ErrToolNotFound, "tool not found"},
		{"ErrScanStopped", ErrScanStopped, "scan stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, tt.err.Error(), tt.want, "error message should match")
		})
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred func(error) bool
		err  error
		want bool
	}{
		{"IsTimeout direct", IsTimeout, ErrTimeout, true},
		{"IsTimeout wrapped", IsTimeout, Wrap(ErrTimeout, "ctx"), true},
		{"IsTimeout other", IsTimeout, ErrNotFound, false},
		{"IsRateLimit direct", IsRateLimit, ErrRateLimit, true},
		{"IsRateLimit wrapped", IsRateLimit, Wrapf(ErrRateLimit, "tool %s", "crtsh"), true},
		{"IsNotFound direct", IsNotFound, ErrNotFound, true},
		{"IsInvalidInput direct", IsInvalidInput, ErrInvalidInput, true},
		{"IsConnectionFailed direct", IsConnectionFailed, ErrConnectionFailed, true},
		{"IsUnauthorized direct", IsUnauthorized, ErrUnauthorized, true},
		{"IsUnauthorized other", IsUnauthorized, ErrRateLimit, false},
		{"IsInvalidResponse direct", IsInvalidResponse, ErrInvalidResponse, true},
		{"IsToolNotFound direct", IsToolNotFound, ErrToolNotFound, true},
		{"IsToolNotFound wrapped", IsToolNotFound, Wrap(ErrToolNotFound, "subfinder"), true},
		{"IsScanStopped direct", IsScanStopped, ErrScanStopped, true},
		{"IsScanStopped nil", IsScanStopped, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pred(tt.err)
			testutil.AssertEqual(t, got, tt.want, "predicate result should match")
		})
	}
}

func TestUpstreamError(t *testing.T) {
	t.Run("formats status code", func(t *testing.T) {
		err := Upstream(503)
		testutil.AssertEqual(t, err.Error(), "API error: HTTP 503", "message should carry the status")
	})

	t.Run("detectable through wrap", func(t *testing.T) {
		err := Wrap(Upstream(500), "source request")
		testutil.AssertTrue(t, IsUpstream(err), "should detect upstream error in chain")

		var ue *UpstreamError
		testutil.AssertTrue(t, As(err, &ue), "As should extract UpstreamError")
		testutil.AssertEqual(t, ue.StatusCode, 500, "status code should survive wrapping")
	})

	t.Run("not confused with sentinels", func(t *testing.T) {
		testutil.AssertTrue(t, !IsUpstream(ErrUnauthorized), "sentinel is not an upstream error")
		testutil.AssertTrue(t, !IsUnauthorized(Upstream(401)), "upstream 401 is distinct from the auth sentinel")
	})
}

func TestAs(t *testing.T) {
	t.Run("finds wrapped error type", func(t *testing.T) {
		baseErr := &wrappedError{msg: "test", cause: ErrTimeout}
		wrapped := Wrap(baseErr, "outer")

		var target *wrappedError
		found := As(wrapped, &target)

		testutil.AssertTrue(t, found, "should find wrappedError type")
		testutil.AssertNotNil(t, target, "target should be set")
		// As finds the first matching type in the chain, which is the outer wrapper
		testutil.AssertEqual(t, target.msg, "outer", "should match wrapper error")
	})

	t.Run("returns false for different type", func(t *testing.T) {
		err := New("test")
		var target *wrappedError

		found := As(err, &target)
		testutil.AssertTrue(t, !found, "should not find wrappedError type")
	})
}

func TestUnwrap(t *testing.T) {
	t.Run("unwraps single layer", func(t *testing.T) {
		baseErr := New("base")
		wrapped := Wrap(baseErr, "context")

		unwrapped := Unwrap(wrapped)
		testutil.AssertEqual(t, unwrapped, baseErr, "should unwrap to base error")
	})

	t.Run("returns nil for non-wrapped error", func(t *testing.T) {
		err := New("test")
		unwrapped := Unwrap(err)
		testutil.AssertTrue(t, unwrapped == nil, "should return nil for non-wrapped error")
	})
}

func TestJoin(t *testing.T) {
	t.Run("joins multiple errors", func(t *testing.T) {
		err1 := New("error 1")
		err2 := New("error 2")
		err3 := New("error 3")

		joined := Join(err1, err2, err3)
		testutil.AssertNotNil(t, joined, "joined error should not be nil")

		// All errors should be findable in the joined error
		testutil.AssertTrue(t, Is(joined, err1), "should find first error")
		testutil.AssertTrue(t, Is(joined, err2), "should find second error")
		testutil.AssertTrue(t, Is(joined, err3), "should find third error")
	})

	t.Run("discards nil errors", func(t *testing.T) {
		err1 := New("error 1")
		err2 := New("error 2")

		joined := Join(err1, nil, err2, nil)
		testutil.AssertNotNil(t, joined, "joined error should not be nil")
		testutil.AssertTrue(t, Is(joined, err1), "should find first error")
		testutil.AssertTrue(t, Is(joined, err2), "should find second error")
	})

	t.Run("returns nil when all errors are nil", func(t *testing.T) {
		joined := Join(nil, nil, nil)
		testutil.AssertTrue(t, joined == nil, "should return nil when all errors are nil")
	})
}

func TestErrorf(t *testing.T) {
	err := Errorf("test error: %d", 42)
	testutil.AssertNotNil(t, err, "error should not be nil")
	testutil.AssertEqual(t, err.Error(), "test error: 42", "error message should be formatted")
}

func ExampleWrap() {
	baseErr := New("database connection failed")
	wrapped := Wrap(baseErr, "failed to save subdomain")
	fmt.Println(wrapped.Error())
	// Output: failed to save subdomain: database connection failed
}

func ExampleIs() {
	err := Wrap(ErrToolNotFound, "subfinder launch failed")
	if Is(err, ErrToolNotFound) {
		fmt.Println("missing binary detected")
	}
	// Output: missing binary detected
}

package discovery

import (
    "errors"
    "fmt"
    "syscall"
    "testing"

    xhttp "OppScan/pkg/http"
)

func TestClassifyAuthStatuses(t *testing.T) {
    for _, code := range []int{401, 403} {
        se := Classify(&xhttp.StatusError{StatusCode: code})
        if se.Kind != KindAuth {
            t.Fatalf("status %d: expected auth kind, got %v", code, se.Kind)
        }
        if !se.Transient() {
            t.Fatalf("auth errors must count toward the breaker, not abort alone")
        }
    }
}

func TestClassifyNotFoundIsFatal(t *testing.T) {
    se := Classify(&xhttp.StatusError{StatusCode: 404, Code: "SCAN_NOT_FOUND"})
    if se.Kind != KindNotFound {
        t.Fatalf("expected not_found, got %v", se.Kind)
    }
    if !se.Fatal() || se.Transient() {
        t.Fatalf("thrown not-found must be terminal")
    }
}

func TestClassifyServerErrorTransient(t *testing.T) {
    se := Classify(&xhttp.StatusError{StatusCode: 503})
    if se.Kind != KindServer || !se.Transient() {
        t.Fatalf("5xx must be transient server error, got %v", se.Kind)
    }
}

func TestClassifyTimeouts(t *testing.T) {
    for _, err := range []error{
        fmt.Errorf("request failed: %w", syscall.ETIMEDOUT),
        fmt.Errorf("request failed: %w", syscall.ECONNABORTED),
    } {
        se := Classify(err)
        if se.Kind != KindNetworkTimeout || !se.Transient() {
            t.Fatalf("expected transient network timeout for %v, got %v", err, se.Kind)
        }
    }
}

func TestClassifyUnknownDefaultsTransient(t *testing.T) {
    se := Classify(errors.New("weird failure"))
    if se.Kind != KindUnknown || !se.Transient() {
        t.Fatalf("unknown errors default to transient")
    }
}

func TestClassifyPassThrough(t *testing.T) {
    orig := NewBackendFailure("strategy engine crashed")
    if got := Classify(fmt.Errorf("wrapped: %w", orig)); got != orig {
        t.Fatalf("classified errors must pass through unchanged")
    }
}

func TestIsPendingCodes(t *testing.T) {
    pending := []*xhttp.StatusError{
        {StatusCode: 400, Code: "SCAN_IN_PROGRESS"},
        {StatusCode: 202},
        {StatusCode: 404},
        {StatusCode: 400, Code: "SCAN_NOT_FOUND"},
    }
    for _, st := range pending {
        if !IsPending(st) {
            t.Fatalf("expected pending for %v", st)
        }
    }
    if IsPending(&xhttp.StatusError{StatusCode: 500}) {
        t.Fatalf("5xx is not pending")
    }
    if IsPending(errors.New("plain")) {
        t.Fatalf("non-status errors are never pending")
    }
}

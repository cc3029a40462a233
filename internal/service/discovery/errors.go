package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	xhttp "OppScan/pkg/http"
)

// Kind partitions scan failures into the classes the poll loop acts on.
type Kind int

const (
	KindUnknown Kind = iota
	KindInitiation
	KindAuth
	KindNotFound
	KindServer
	KindNetworkTimeout
	KindBackendFailed
	KindScanTimeout
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindInitiation:
		return "initiation"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	case KindNetworkTimeout:
		return "network_timeout"
	case KindBackendFailed:
		return "backend_failed"
	case KindScanTimeout:
		return "scan_timeout"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// ScanError is the classified form of any failure in the scan path.
type ScanError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ScanError) Unwrap() error { return e.Err }

// Transient reports whether the poll loop may retry in place. Auth errors
// are fatal-class but do not early-exit on their own; only the
// consecutive-error breaker aborts, so they count as retryable here.
func (e *ScanError) Transient() bool {
	switch e.Kind {
	case KindServer, KindNetworkTimeout, KindUnknown, KindAuth:
		return true
	default:
		return false
	}
}

// Fatal reports whether the error must abort the scan immediately.
func (e *ScanError) Fatal() bool {
	switch e.Kind {
	case KindNotFound, KindBackendFailed, KindInitiation, KindScanTimeout:
		return true
	default:
		return false
	}
}

func newError(kind Kind, msg string, cause error) *ScanError {
	return &ScanError{Kind: kind, Msg: msg, Err: cause}
}

// NewInitiationError marks a scan that never started.
func NewInitiationError(msg string, cause error) *ScanError {
	return newError(KindInitiation, msg, cause)
}

// NewBackendFailure carries the backend-supplied failure reason.
func NewBackendFailure(reason string) *ScanError {
	if reason == "" {
		reason = "scan failed on the backend"
	}
	return newError(KindBackendFailed, reason, nil)
}

// NewScanTimeout marks a scan that exhausted its polling budget with no
// usable data.
func NewScanTimeout(scanID string, attempts int) *ScanError {
	return newError(KindScanTimeout,
		fmt.Sprintf("scan %s timed out after %d poll attempts", scanID, attempts), nil)
}

// NewValidationError marks a failed per-opportunity validation call.
func NewValidationError(symbol string, cause error) *ScanError {
	return newError(KindValidation, fmt.Sprintf("validation failed for %s", symbol), cause)
}

// Classify turns a raw transport failure into a ScanError. Already
// classified errors pass through unchanged.
func Classify(err error) *ScanError {
	var se *ScanError
	if errors.As(err, &se) {
		return se
	}

	var st *xhttp.StatusError
	if errors.As(err, &st) {
		switch {
		case st.StatusCode == 401 || st.StatusCode == 403:
			return newError(KindAuth, "authentication rejected by scan backend", err)
		case st.StatusCode == 404 || st.Code == "SCAN_NOT_FOUND":
			return newError(KindNotFound, "scan not found", err)
		case st.StatusCode >= 500:
			return newError(KindServer, "scan backend server error", err)
		default:
			return newError(KindUnknown, "unexpected scan backend response", err)
		}
	}

	if isTimeout(err) {
		return newError(KindNetworkTimeout, "scan backend request timed out", err)
	}

	return newError(KindUnknown, "scan request failed", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	if errors.Is(err, syscall.ETIMEDOUT) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// pendingCodes are the results-endpoint error codes meaning "job finished
// signal and result materialization are not atomically consistent; try
// again". 404/SCAN_NOT_FOUND are deliberately included here for results
// fetches only; a not-found thrown by the status endpoint stays terminal.
var pendingCodes = map[string]struct{}{
	"SCAN_IN_PROGRESS": {},
	"202":              {},
	"404":              {},
	"SCAN_NOT_FOUND":   {},
}

// IsPending reports whether a results-fetch error means "not ready yet"
// rather than a real failure.
func IsPending(err error) bool {
	var st *xhttp.StatusError
	if !errors.As(err, &st) {
		return false
	}
	if _, ok := pendingCodes[st.Code]; ok {
		return true
	}
	_, ok := pendingCodes[strconv.Itoa(st.StatusCode)]
	return ok
}

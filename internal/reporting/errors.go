package reporting

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange indicates a window whose start falls after its end.
	ErrInvalidRange = errors.New("reporting: invalid date range")
	// ErrUnsupportedChartType indicates an unknown chart discriminator.
	ErrUnsupportedChartType = errors.New("reporting: unsupported chart type")
	// ErrUnsupportedReportType indicates an unknown report discriminator.
	ErrUnsupportedReportType = errors.New("reporting: unsupported report type")
	// ErrInternalInvariant signals a self-consistency defect in a computed payload.
	ErrInternalInvariant = errors.New("reporting: internal invariant violation")
	// ErrUpstreamUnavailable signals that a data provider fetch failed.
	ErrUpstreamUnavailable = errors.New("reporting: upstream unavailable")
)

// UpstreamError wraps a data provider failure. It matches both
// ErrUpstreamUnavailable and the provider's own error.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("reporting: fetch %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstreamUnavailable as a match.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

func upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Source: source, Err: err}
}

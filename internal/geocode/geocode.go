// Package geocode verifies postal addresses against the Google Geocoding API.
//
// Verification never returns an error: every outcome, including configuration and
// transport failures, is a Verdict whose Message is shown to the patient verbatim.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/models"
	"googlemaps.github.io/maps"
)

// Reason classifies a verification outcome.
type Reason string

// Verification reasons.
const (
	ReasonOK             Reason = "ok"
	ReasonMissingKey     Reason = "missing_key"
	ReasonEmptyAddress   Reason = "empty_address"
	ReasonInvalidRequest Reason = "invalid_request"
	ReasonRequestDenied  Reason = "request_denied"
	ReasonUpstreamStatus Reason = "upstream_status"
	ReasonNoResults      Reason = "no_results"
	ReasonTransport      Reason = "transport"
	ReasonMalformed      Reason = "malformed_response"
)

// AddressRejected reports whether the reason is about the address itself rather than
// the verifier's ability to check it. Such addresses should be collected again.
func (r Reason) AddressRejected() bool {
	switch r {
	case ReasonEmptyAddress, ReasonInvalidRequest, ReasonNoResults:
		return true
	}
	return false
}

// statusReason maps a non-OK Geocoding API status to a reason. Statuses that are not
// about the address (credentials, quota, upstream errors) keep the address retryable.
func statusReason(status string) Reason {
	switch status {
	case "INVALID_REQUEST":
		return ReasonInvalidRequest
	case "ZERO_RESULTS":
		return ReasonNoResults
	case "REQUEST_DENIED":
		return ReasonRequestDenied
	default:
		return ReasonUpstreamStatus
	}
}

// NoResultsMessage is shown when Google finds nothing for the address. The maps client
// reports a ZERO_RESULTS status as an empty result set.
const NoResultsMessage = "Google geocoding failed: ZERO_RESULTS - Google found no results for this address."

// Verdict is the result of verifying one address.
type Verdict struct {
	Accepted   bool
	Reason     Reason
	Message    string
	Normalized *models.AddressRecord
}

func reject(reason Reason, msg string) Verdict {
	return Verdict{Reason: reason, Message: msg}
}

// Verifier checks a complete address.
type Verifier interface {
	Verify(ctx context.Context, addr models.AddressRecord) Verdict
}

// geocoder is the subset of *maps.Client used here.
type geocoder interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// GoogleVerifier implements Verifier with the Google Geocoding API.
type GoogleVerifier struct {
	client geocoder
}

// Opts holds configuration for the Google verifier.
type Opts struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Option configures a GoogleVerifier.
type Option func(*Opts)

// WithAPIKey sets the Google Maps API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the Maps API host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// NewGoogleVerifier creates a verifier. A missing API key is not an error here; every
// Verify call then rejects with the missing-credential message.
func NewGoogleVerifier(opts ...Option) (*GoogleVerifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		slog.Warn("GoogleVerifier: GOOGLE_MAPS_API_KEY not configured; addresses will be rejected")
		return &GoogleVerifier{}, nil
	}
	clientOpts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(cfg.HTTPClient))
	}
	c, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleVerifier{client: c}, nil
}

// Verify geocodes the address and maps the first result back into an AddressRecord.
func (v *GoogleVerifier) Verify(ctx context.Context, addr models.AddressRecord) Verdict {
	if v.client == nil {
		return reject(ReasonMissingKey, "Missing GOOGLE_MAPS_API_KEY env var.")
	}
	if !addr.Complete() {
		return reject(ReasonEmptyAddress, "Address is empty or incomplete.")
	}

	results, err := v.client.Geocode(ctx, &maps.GeocodingRequest{Address: addr.Line()})
	if err != nil {
		verdict := classify(err)
		slog.Warn("GoogleVerifier.Verify: geocoding failed", "reason", verdict.Reason, "error", err)
		return verdict
	}
	if len(results) == 0 {
		return reject(ReasonNoResults, NoResultsMessage)
	}

	normalized := normalize(addr, results[0])
	slog.Debug("GoogleVerifier.Verify: address accepted", "components", len(results[0].AddressComponents))
	return Verdict{Accepted: true, Reason: ReasonOK, Message: "OK", Normalized: &normalized}
}

// classify turns a maps client error into a rejection verdict.
func classify(err error) Verdict {
	var urlErr *url.Error
	var netErr net.Error
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.As(err, &urlErr), errors.As(err, &netErr):
		return reject(ReasonTransport, fmt.Sprintf("Network error calling Google: %v", err))
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return reject(ReasonMalformed, fmt.Sprintf("Could not parse Google response JSON: %v", err))
	case strings.HasPrefix(err.Error(), "maps: "):
		// the client reports non-OK statuses as "maps: STATUS - error_message"
		detail := strings.TrimPrefix(err.Error(), "maps: ")
		status, _, _ := strings.Cut(detail, " - ")
		return reject(statusReason(strings.TrimSpace(status)), "Google geocoding failed: "+detail)
	default:
		return reject(ReasonTransport, fmt.Sprintf("Network error calling Google: %v", err))
	}
}

// normalize overlays verified components on the submitted address. Components the
// result does not carry keep the patient's input.
func normalize(in models.AddressRecord, r maps.GeocodingResult) models.AddressRecord {
	out := in.Clone()
	var number, route string
	for _, c := range r.AddressComponents {
		for _, t := range c.Types {
			switch t {
			case "street_number":
				number = c.LongName
			case "route":
				route = c.ShortName
			case "locality":
				out.City = models.String(c.LongName)
			case "administrative_area_level_1":
				out.State = models.String(c.ShortName)
			case "postal_code":
				out.Zip = models.String(c.LongName)
			}
		}
	}
	if number != "" && route != "" {
		out.Street = models.String(number + " " + route)
	}
	return out
}

// PassThrough accepts every complete address unchanged. It backs the
// skip-address-verification development mode.
type PassThrough struct{}

// Verify accepts complete addresses as-is.
func (PassThrough) Verify(ctx context.Context, addr models.AddressRecord) Verdict {
	if !addr.Complete() {
		return reject(ReasonEmptyAddress, "Address is empty or incomplete.")
	}
	n := addr.Clone()
	return Verdict{Accepted: true, Reason: ReasonOK, Message: "OK", Normalized: &n}
}

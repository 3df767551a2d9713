package driven

import (
	"context"
	"net/url"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

// Endpoint selects which upstream surface a request targets.
type Endpoint string

const (
	// EndpointListing is the paginated search endpoint.
	EndpointListing Endpoint = "listing"

	// EndpointDetail is the single-document endpoint.
	EndpointDetail Endpoint = "detail"

	// EndpointPage is an absolute document-page URL used by the markup fallback.
	EndpointPage Endpoint = "page"
)

// FetchRequest describes one upstream call.
type FetchRequest struct {
	Endpoint Endpoint
	Kind     domain.DocumentKind

	// Params are query parameters added to the endpoint. The API key and
	// response format are added by the fetcher.
	Params url.Values

	// URL is required for EndpointPage and ignored otherwise.
	URL string
}

// Fetcher is the single funnel for upstream calls.
// Implementations own throttling, retry and timeout policy, and return
// *domain.FetchFailure instead of raw transport errors.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*domain.RawResponse, error)
}

// ListingQuery selects one page of a listing.
type ListingQuery struct {
	Kind    domain.DocumentKind
	Page    int
	Display int

	// Since filters by decision date lower bound. Zero means unfiltered.
	Since time.Time
	Until time.Time
}

// ListingPage is one parsed listing page.
type ListingPage struct {
	Page       int
	TotalCount int
	Items      []domain.RawFieldMap
}

// DocumentSource retrieves usable field maps from the registry,
// applying the structured-then-markup interpretation strategy for details.
type DocumentSource interface {
	// Listing fetches and parses one listing page.
	Listing(ctx context.Context, q ListingQuery) (*ListingPage, error)

	// Detail fetches one document. Returns *domain.UnrecoverableError when
	// neither response tier yields a usable document.
	Detail(ctx context.Context, kind domain.DocumentKind, serial string) (domain.RawFieldMap, error)
}

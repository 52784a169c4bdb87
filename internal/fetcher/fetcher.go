package fetcher

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited signals the API answered 429. The cooldown has already
	// been persisted when a caller sees it.
	ErrRateLimited = errors.New("market api rate limit exceeded")
	// ErrFetchFailed wraps any other transport or protocol failure.
	ErrFetchFailed = errors.New("market api fetch failed")
)

// ItemMetadata is the display information for an item.
type ItemMetadata struct {
	ID   int64
	Name string
	Icon string
}

// Order is the best order on one side of the book. Both fields are zero when
// the side is empty.
type Order struct {
	Price    int64
	Quantity int64
}

// Listing summarises the order book of one item.
type Listing struct {
	ID   int64
	Buy  Order
	Sell Order
}

// MetadataFetcher looks up item names and icons.
type MetadataFetcher interface {
	FetchItemMetadata(ctx context.Context, ids []int64) (map[int64]ItemMetadata, error)
}

// ListingFetcher retrieves current best buy/sell orders.
type ListingFetcher interface {
	FetchListings(ctx context.Context, ids []int64) (map[int64]Listing, error)
}

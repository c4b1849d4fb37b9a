// Package resilience provides reliability and fault tolerance patterns
// for outbound calls. It includes circuit breakers for marketplace and
// webhook endpoints and retry logic with exponential backoff.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.MarketplaceConfig("yahoo_auctions"))
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchListings()
//	})
//
//	retryConfig := retry.MarketplaceConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience

// Package resilience holds the fault tolerance building blocks used
// around external calls: circuit breakers for the embedding and answer
// generation APIs and for newswire fetches, retry with exponential
// backoff and jitter, and health check helpers for dependency
// monitoring.
//
//	cb := circuitbreaker.NewCircuitBreaker("embeddings", circuitbreaker.DefaultConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callExternalService()
//	})
//
//	retryConfig := retry.DefaultConfig()
//	err := retry.WithBackoff(ctx, retryConfig, func() error {
//	    return performOperation()
//	})
package resilience

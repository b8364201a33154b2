// Package resilience provides reliability and fault tolerance patterns
// for every call that crosses a process boundary: the retrieval index,
// the case-search service, the generation backend and the cache store.
//
// The package composes three single-responsibility wrappers:
//   - timeout: deadline guard raising a distinct error kind on expiry
//   - circuitbreaker: named breakers that short-circuit failing
//     dependencies
//   - retry: bounded exponential backoff for transient errors
//
// Usage Example:
//
//	registry := circuitbreaker.NewRegistry()
//	composer := resilience.NewComposer(registry)
//	policy := resilience.PolicyFor(resilience.ClassRetrieval)
//	err := composer.Execute(ctx, "retrieval.search", policy, func(ctx context.Context) error {
//	    passages, err = client.Search(ctx, query, topK)
//	    return err
//	})
package resilience

// Package llm provides a provider-neutral chat completion layer: typed
// request and response structures, a transport Client interface, and a
// Pipeline that runs every call through registered interceptors and
// middleware.
//
// Interceptors observe the lifecycle of a call (request, response,
// stream chunks, stream end, errors) and can veto phases; middleware
// wraps execution and can rewrite requests, short-circuit with a
// fabricated response, or retry. Provider adapters for specific
// backends live in subpackages.
package llm

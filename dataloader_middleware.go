package main

import "net/http"

// DataLoaderMiddleware gives every request fresh loaders so cached
// profiles never outlive the request.
func DataLoaderMiddleware(src profileSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDataLoaders(r.Context(), NewDataLoaders(src))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Package auth provides API key authentication for pulsebridge-server.
//
// APIKeyInterceptor(mode, header, key) returns a gRPC UnaryServerInterceptor
// that validates the API key from the named gRPC metadata header.
//
// Middleware(mode, header, key) is the HTTP equivalent. It accepts the key in
// the named header or, for Realtime Database style clients, in the "auth"
// query parameter.
//
// When mode != "apikey" or key == "", all calls pass through (useful for local
// development with auth disabled). When the key is incorrect or absent,
// the call is rejected immediately.
package auth

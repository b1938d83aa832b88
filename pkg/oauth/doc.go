// Package oauth authorizes mcplab against the OAuth 2.0 authorization
// servers that protect tool servers.
//
// A flow has two halves. Service.Initiate discovers the authorization
// server (RFC 8414, then OpenID Connect discovery), obtains a client through
// dynamic registration (RFC 7591) and returns an Attempt carrying the
// authorization URL plus the PKCE verifier, nonce and state the caller must
// keep until the browser returns. Service.CompleteCallback validates the
// returned state against those values, exchanges the code and stores the
// encrypted access token on the server record.
//
// The state parameter carries the server URL and id as base64 JSON, so no
// server-side session is needed between the two halves.
package oauth

// Package auth resolves the caller of an API request.
//
// Authenticators vote Accept, Reject or Abstain on the request's
// credentials and are evaluated as a chain. The resulting identity's
// subject is the owner under which server records and tokens are stored;
// handlers read it with Owner.
package auth

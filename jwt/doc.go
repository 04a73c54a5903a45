// Package jwt manages signed access-token issuance and verification for the
// authentication core. Access tokens are self-describing bearer credentials
// carrying subject, granted scope, token family, and generation claims;
// verification is stateless (signature and expiry only) so the hot path never
// touches the backing store.
package jwt

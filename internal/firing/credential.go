package firing

import "context"

type credentialKey struct{}

// WithCredential attaches the caller's bearer credential to ctx so a remote
// Backend can forward it.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

// CredentialFrom returns the credential attached by WithCredential.
func CredentialFrom(ctx context.Context) string {
	token, _ := ctx.Value(credentialKey{}).(string)
	return token
}

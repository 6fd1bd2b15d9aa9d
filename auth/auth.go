package auth

// CredentialSource yields the bearer credential currently held by the host
// application. Implementations must read fresh on every call.
type CredentialSource interface {
	CurrentCredential() (token string, ok bool, err error)
}

// SourceFunc adapts a function into a CredentialSource.
type SourceFunc func() (string, bool, error)

func (f SourceFunc) CurrentCredential() (string, bool, error) { return f() }

// Static returns a CredentialSource that always yields token.
func Static(token string) CredentialSource {
	return SourceFunc(func() (string, bool, error) { return token, true, nil })
}

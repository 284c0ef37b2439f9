package auth

// SideEffect is an instruction the transport layer performs after an
// operation succeeds. The service never touches cookies or mail servers
// itself.
type SideEffect interface {
	sideEffect()
}

// SetSessionCookie asks the transport to store the credential in the
// session cookie.
type SetSessionCookie struct {
	Token string
}

// ClearSessionCookie asks the transport to expire the session cookie.
type ClearSessionCookie struct{}

// SendEmail asks the transport to deliver a templated email.
type SendEmail struct {
	Email Email
}

func (SetSessionCookie) sideEffect()   {}
func (ClearSessionCookie) sideEffect() {}
func (SendEmail) sideEffect()          {}

// EmailsFrom returns the emails requested by a list of side effects.
func EmailsFrom(effects []SideEffect) []Email {
	var out []Email
	for _, e := range effects {
		if se, ok := e.(SendEmail); ok {
			out = append(out, se.Email)
		}
	}
	return out
}

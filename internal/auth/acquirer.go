package auth

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"outlookterm/internal/model"
)

// Acquirer obtains bearer tokens for one resource through a Broker.
type Acquirer struct {
	broker    Broker
	authority string
	resource  string
	clientID  string
	log       *logrus.Entry
}

func NewAcquirer(b Broker, authority, resource, clientID string, log *logrus.Entry) *Acquirer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Acquirer{
		broker:    b,
		authority: authority,
		resource:  resource,
		clientID:  clientID,
		log:       log.WithField("pkg", "auth"),
	}
}

// Token returns a bearer token for the configured resource. It tries a
// silent request first and falls back to an interactive one only when the
// broker says user interaction is required.
//
// It never returns an empty token with a nil error. Failures wrap
// model.ErrAuthSilentFailed, model.ErrAuthInteractiveFailed or
// model.ErrAuthNoToken; cancellation additionally matches ctx.Err().
func (a *Acquirer) Token(ctx context.Context) (string, error) {
	provider, err := a.broker.FindAccountProvider(ctx, a.authority)
	if err != nil {
		return "", authErr(model.ErrAuthSilentFailed, fmt.Errorf("find account provider for %s: %w", a.authority, err))
	}

	res := a.broker.GetTokenSilently(ctx, a.request(provider, PromptDefault))
	switch res.Status {
	case StatusSuccess:
		a.log.Debug("token acquired silently")
		return firstToken(res)
	case StatusUserInteractionRequired:
		a.log.WithError(res.Err).Info("silent sign-in needs user interaction")
	default:
		a.log.WithError(res.Err).WithField("status", res.Status.String()).Warn("silent sign-in failed")
		return "", authErr(model.ErrAuthSilentFailed, res.Err)
	}

	res = a.broker.RequestToken(ctx, a.request(provider, PromptForceAuthentication))
	if res.Status != StatusSuccess {
		a.log.WithError(res.Err).WithField("status", res.Status.String()).Warn("interactive sign-in failed")
		return "", authErr(model.ErrAuthInteractiveFailed, res.Err)
	}
	a.log.Info("token acquired interactively")
	return firstToken(res)
}

func (a *Acquirer) request(p *Provider, prompt PromptType) TokenRequest {
	return TokenRequest{
		Provider: p,
		ClientID: a.clientID,
		Prompt:   prompt,
		Properties: map[string]string{
			PropAuthority: a.authority,
			PropResource:  a.resource,
		},
	}
}

func firstToken(res TokenResult) (string, error) {
	if len(res.Tokens) == 0 || res.Tokens[0] == "" {
		return "", model.ErrAuthNoToken
	}
	return res.Tokens[0], nil
}

func authErr(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

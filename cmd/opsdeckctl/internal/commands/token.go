package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/opsdeck/opsdeck/internal/infra/token"
	"github.com/opsdeck/opsdeck/internal/tenant"
)

type TokenCmd struct {
	User       string        `help:"User id the token identifies" required:""`
	Email      string        `help:"Email carried in the token"`
	Name       string        `help:"Display name carried in the token"`
	TTL        time.Duration `help:"Token lifetime" default:"24h"`
	Issuer     string        `help:"Token issuer" default:"opsdeck" env:"JWT_ISSUER"`
	SigningKey string        `help:"JWT signing key" required:"" env:"JWT_SECRET"`
}

func (t *TokenCmd) Run(ctx context.Context, globals *Globals) error {
	svc, err := token.NewJWTService(t.SigningKey, t.TTL, t.Issuer)
	if err != nil {
		return err
	}
	tok, err := svc.GenerateAccessToken(tenant.Principal{UserID: t.User, Email: t.Email, DisplayName: t.Name})
	if err != nil {
		return err
	}

	fmt.Fprintln(globals.Out, tok)
	return nil
}

package localidp

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"

	"github.com/golang-jwt/jwt/v4"

	"github.com/target/studentdash/internal/ports"
)

const verifyAudience = "verify-email"

type verifyClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// VerificationToken signs a token binding userID to email.
func (d *Directory) VerificationToken(userID, email string) (string, error) {
	if d.cfg.VerificationSecret == "" {
		return "", errors.New("verification secret is not configured")
	}
	now := d.now()
	claims := verifyClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{verifyAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d.cfg.VerificationTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(d.cfg.VerificationSecret))
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return signed, nil
}

func (d *Directory) sendVerification(ctx context.Context, userID string) error {
	if d.mailer == nil {
		return errors.New("no mailer configured")
	}
	acct, err := d.account(ctx, userID)
	if err != nil {
		return err
	}
	if acct.Email == "" {
		return ports.NewProviderError(ports.CodeInvalidEmail, errors.New("account has no email"))
	}
	token, err := d.VerificationToken(acct.ID, acct.Email)
	if err != nil {
		return err
	}
	link := d.cfg.BaseURL + "/auth/verify-email?token=" + url.QueryEscape(token)

	name := acct.DisplayName
	if name == "" {
		name = acct.Email
	}
	msg := ports.MailMessage{
		To:      acct.Email,
		ToName:  name,
		Subject: "Verify your email address",
		Text:    fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening this link:\n%s\n", name, link),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Confirm your email address</a></p>`,
			html.EscapeString(name), html.EscapeString(link)),
	}
	if sendErr := d.mailer.Send(ctx, msg); sendErr != nil {
		return fmt.Errorf("send verification email: %w", sendErr)
	}
	d.logger().InfoContext(ctx, "verification email sent", "user_id", acct.ID)
	return nil
}

// VerifyEmail consumes a verification token, marks the account verified and pushes the
// refreshed identity to every client signed in as that user.
func (d *Directory) VerifyEmail(ctx context.Context, token string) error {
	var claims verifyClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(d.cfg.VerificationSecret), nil
	})
	if err != nil || !parsed.Valid || !claims.VerifyAudience(verifyAudience, true) {
		return ports.NewProviderError(ports.CodeInvalidActionCode, err)
	}

	acct, err := d.account(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if acct.Email != claims.Email {
		return ports.NewProviderError(ports.CodeInvalidActionCode, errors.New("email changed since token was issued"))
	}
	if acct.EmailVerified {
		return nil
	}
	acct.EmailVerified = true
	updated, err := d.accounts.Update(ctx, acct)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	d.broadcast(updated.ID, updated.Identity())
	return nil
}

package service_test

import (
	"context"
	"testing"

	"github.com/chapatuventa/marketplace/internal/auth/service"

	"github.com/stretchr/testify/require"
)

func TestAuth_RegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity, sessionID, err := h.Auth.Register(ctx, "round@example.com", "s3cure-pass!", "Ada", "Lovelace")
	require.NoError(t, err)
	require.NotEmpty(t, identity.ID)
	require.NotEmpty(t, sessionID)

	// Unverified accounts cannot log in, even with the right password.
	_, _, err = h.Auth.Login(ctx, "round@example.com", "s3cure-pass!", testClient)
	require.ErrorIs(t, err, service.ErrEmailNotVerified)

	code := h.Notifier.verificationCode("round@example.com")
	require.NoError(t, h.Auth.VerifyEmail(ctx, sessionID, code))

	got, pair, err := h.Auth.Login(ctx, "round@example.com", "s3cure-pass!", testClient)
	require.NoError(t, err)
	require.Equal(t, identity.ID, got.ID)
	require.Equal(t, "Bearer", pair.TokenType)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := h.Signer.Parse(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, identity.ID, claims.Subject)
	require.Equal(t, "round@example.com", claims.Email)
	require.Equal(t, "user", claims.Role)

	profile, err := h.Auth.GetProfile(ctx, identity.ID)
	require.NoError(t, err)
	require.True(t, profile.EmailVerified)
	require.NotNil(t, profile.LastLogin)
	require.Equal(t, "Ada Lovelace", profile.Identity.DisplayName())
}

func TestAuth_RegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.Auth.Register(ctx, "taken@example.com", "password-one1", "First", "User")
	require.NoError(t, err)

	_, _, err = h.Auth.Register(ctx, "taken@example.com", "password-two2", "Second", "User")
	require.ErrorIs(t, err, service.ErrEmailAlreadyExists)
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registerVerified(t, "wrongpw@example.com", "correct-pass1")

	_, _, err := h.Auth.Login(ctx, "wrongpw@example.com", "incorrect-pass", testClient)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = h.Auth.Login(ctx, "ghost@example.com", "correct-pass1", testClient)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuth_RefreshRotatesAndDetectsReuse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := h.registerVerified(t, "refresh@example.com", "s3cure-pass!")

	_, pair, err := h.Auth.Login(ctx, "refresh@example.com", "s3cure-pass!", testClient)
	require.NoError(t, err)

	next, err := h.Auth.Refresh(ctx, pair.RefreshToken, testClient)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	claims, err := h.Signer.Parse(next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, identity, claims.Subject)

	// Replaying the rotated-out token kills the whole chain.
	_, err = h.Auth.Refresh(ctx, pair.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)

	_, err = h.Auth.Refresh(ctx, next.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)
}

func TestAuth_LogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registerVerified(t, "logout@example.com", "s3cure-pass!")

	_, pair, err := h.Auth.Login(ctx, "logout@example.com", "s3cure-pass!", testClient)
	require.NoError(t, err)

	require.NoError(t, h.Auth.Logout(ctx, pair.RefreshToken))
	require.ErrorIs(t, h.Auth.Logout(ctx, pair.RefreshToken), service.ErrInvalidToken)

	_, err = h.Auth.Refresh(ctx, pair.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)
}

func TestAuth_RevokeAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity := h.registerVerified(t, "revokeall@example.com", "s3cure-pass!")

	_, laptop, err := h.Auth.Login(ctx, "revokeall@example.com", "s3cure-pass!", testClient)
	require.NoError(t, err)
	_, phone, err := h.Auth.Login(ctx, "revokeall@example.com", "s3cure-pass!", testClient)
	require.NoError(t, err)

	require.NoError(t, h.Auth.RevokeAll(ctx, identity))

	_, err = h.Auth.Refresh(ctx, laptop.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)
	_, err = h.Auth.Refresh(ctx, phone.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)
}

func TestAuth_ResendVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, firstSession, err := h.Auth.Register(ctx, "resendauth@example.com", "s3cure-pass!", "Re", "Send")
	require.NoError(t, err)
	firstCode := h.Notifier.verificationCode("resendauth@example.com")

	secondSession, err := h.Auth.ResendVerification(ctx, firstSession)
	require.NoError(t, err)
	require.NotEqual(t, firstSession, secondSession)

	require.ErrorIs(t, h.Auth.VerifyEmail(ctx, firstSession, firstCode), service.ErrSessionUsed)

	secondCode := h.Notifier.verificationCode("resendauth@example.com")
	require.NoError(t, h.Auth.VerifyEmail(ctx, secondSession, secondCode))

	_, err = h.Auth.ResendVerification(ctx, secondSession)
	require.ErrorIs(t, err, service.ErrAlreadyVerified)

	_, err = h.Auth.ResendVerification(ctx, "no-such-session")
	require.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestAuth_ResendVerificationRejectsResetSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registerVerified(t, "resendscope@example.com", "s3cure-pass!")

	resetSession, err := h.Auth.ForgotPassword(ctx, "resendscope@example.com")
	require.NoError(t, err)

	_, err = h.Auth.ResendVerification(ctx, resetSession)
	require.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestAuth_RegisterSurfacesIssueFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A zero-burst limiter refuses every issuance.
	cfg := service.DefaultOtpConfig()
	cfg.IssueBurst = 0
	h.Auth.Otp = &service.OtpService{Store: h.Store, Notifier: h.Notifier, Config: cfg}

	_, _, err := h.Auth.Register(ctx, "noissue@example.com", "s3cure-pass!", "No", "Issue")
	require.ErrorIs(t, err, service.ErrIssueRateLimited)

	// The identity itself stays committed; only the code was never issued.
	_, err = h.Store.Identities().GetIdentityByEmail(ctx, "noissue@example.com")
	require.NoError(t, err)
}

func TestAuth_ForgotPasswordUnknownEmail(t *testing.T) {
	h := newHarness(t)

	_, err := h.Auth.ForgotPassword(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, service.ErrEmailNotFound)
}

func TestAuth_ResetPasswordSamePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registerVerified(t, "samepw@example.com", "keep-this-one1")

	sessionID, err := h.Auth.ForgotPassword(ctx, "samepw@example.com")
	require.NoError(t, err)
	code := h.Notifier.resetCode("samepw@example.com")

	err = h.Auth.ResetPassword(ctx, sessionID, code, "keep-this-one1")
	require.ErrorIs(t, err, service.ErrSamePassword)

	// The failed reset consumed the session and burned an attempt.
	session, err := h.Store.OtpSessions().GetOtpSession(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, session.Used)
	require.Equal(t, 1, session.Attempts)

	err = h.Auth.ResetPassword(ctx, sessionID, code, "a-different-one1")
	require.ErrorIs(t, err, service.ErrSessionUsed)

	// The original password still works.
	_, _, err = h.Auth.Login(ctx, "samepw@example.com", "keep-this-one1", testClient)
	require.NoError(t, err)
}

func TestAuth_ResetPasswordRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.registerVerified(t, "resetpw@example.com", "original-pass1")

	_, pair, err := h.Auth.Login(ctx, "resetpw@example.com", "original-pass1", testClient)
	require.NoError(t, err)

	sessionID, err := h.Auth.ForgotPassword(ctx, "resetpw@example.com")
	require.NoError(t, err)
	code := h.Notifier.resetCode("resetpw@example.com")

	require.NoError(t, h.Auth.ResetPassword(ctx, sessionID, code, "brand-new-pass1"))

	// Every pre-reset session is dead.
	_, err = h.Auth.Refresh(ctx, pair.RefreshToken, testClient)
	require.ErrorIs(t, err, service.ErrTokenReuseDetected)

	_, _, err = h.Auth.Login(ctx, "resetpw@example.com", "original-pass1", testClient)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = h.Auth.Login(ctx, "resetpw@example.com", "brand-new-pass1", testClient)
	require.NoError(t, err)
}

func TestAuth_ResetPasswordBackfillsVerification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Registered but never verified.
	_, _, err := h.Auth.Register(ctx, "backfillauth@example.com", "initial-pass1", "Back", "Fill")
	require.NoError(t, err)

	sessionID, err := h.Auth.ForgotPassword(ctx, "backfillauth@example.com")
	require.NoError(t, err)
	code := h.Notifier.resetCode("backfillauth@example.com")

	require.NoError(t, h.Auth.ResetPassword(ctx, sessionID, code, "post-reset-pass1"))

	// Completing a reset proves email ownership, so login is now allowed.
	_, _, err = h.Auth.Login(ctx, "backfillauth@example.com", "post-reset-pass1", testClient)
	require.NoError(t, err)
}

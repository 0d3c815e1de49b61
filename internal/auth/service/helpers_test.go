package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chapatuventa/marketplace/internal/auth/service"
	"github.com/chapatuventa/marketplace/internal/auth/store"
	"github.com/chapatuventa/marketplace/internal/auth/store/drivers/sqlite"
	"github.com/chapatuventa/marketplace/pkg/cryptox"
	"github.com/chapatuventa/marketplace/pkg/jwtx"

	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:servicetest%d?mode=memory&cache=shared", dbSeq.Add(1))
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// fastParams keeps the hashing cost tiny so the suite stays quick.
func fastParams() cryptox.Params {
	return cryptox.Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// captureNotifier records the plaintext codes handed to it, keyed by
// recipient, so tests can redeem them.
type captureNotifier struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{
		verification: make(map[string]string),
		reset:        make(map[string]string),
	}
}

func (n *captureNotifier) SendVerificationEmail(_ context.Context, recipient, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification[recipient] = code
	return nil
}

func (n *captureNotifier) SendPasswordResetEmail(_ context.Context, recipient, _, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset[recipient] = code
	return nil
}

func (n *captureNotifier) verificationCode(recipient string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verification[recipient]
}

func (n *captureNotifier) resetCode(recipient string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[recipient]
}

type harness struct {
	Store    store.Store
	Notifier *captureNotifier
	Vault    *service.CredentialService
	Otp      *service.OtpService
	Ledger   *service.LedgerService
	Signer   *jwtx.Signer
	Auth     *service.AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := newTestStore(t)
	notifier := newCaptureNotifier()

	cfg := service.DefaultOtpConfig()
	cfg.IssueBurst = 100 // individual tests exercise the limiter explicitly

	vault := &service.CredentialService{Store: st, Params: fastParams()}
	otp := &service.OtpService{Store: st, Notifier: notifier, Config: cfg}
	ledger := &service.LedgerService{Store: st, RefreshTTL: time.Hour}
	signer := jwtx.NewSigner([]byte("test-secret"), "marketplace-test", time.Minute)

	return &harness{
		Store:    st,
		Notifier: notifier,
		Vault:    vault,
		Otp:      otp,
		Ledger:   ledger,
		Signer:   signer,
		Auth: &service.AuthService{
			Store:  st,
			Vault:  vault,
			Otp:    otp,
			Ledger: ledger,
			Signer: signer,
		},
	}
}

// registerVerified runs the full register and verify-email flow.
func (h *harness) registerVerified(t *testing.T, email, password string) string {
	t.Helper()

	identity, sessionID, err := h.Auth.Register(context.Background(), email, password, "Test", "User")
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)

	code := h.Notifier.verificationCode(email)
	require.NotEmpty(t, code)
	require.NoError(t, h.Auth.VerifyEmail(context.Background(), sessionID, code))

	return identity.ID
}

package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

// WebhookSecretHeader carries the secret token registered with setWebhook.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// HashSecret hashes a plaintext secret with the configured cost.
func HashSecret(secret string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret verifies a secret against its hashed value.
func CompareSecret(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// WebhookGuard checks the webhook secret header against a bcrypt hash. Once
// a value has matched it is remembered, so later requests skip bcrypt.
type WebhookGuard struct {
	hash string

	mu       sync.RWMutex
	accepted []byte
}

// NewWebhookGuard creates a guard. An empty hash accepts every request.
func NewWebhookGuard(hash string) *WebhookGuard {
	return &WebhookGuard{hash: hash}
}

// Handle is the fiber middleware.
func (g *WebhookGuard) Handle(c *fiber.Ctx) error {
	if g.hash == "" {
		return c.Next()
	}
	if !g.verify(c.Get(WebhookSecretHeader)) {
		return apperrors.NewUnauthorized("invalid webhook secret")
	}
	return c.Next()
}

func (g *WebhookGuard) verify(secret string) bool {
	if secret == "" {
		return false
	}
	g.mu.RLock()
	accepted := g.accepted
	g.mu.RUnlock()
	if accepted != nil {
		return subtle.ConstantTimeCompare(accepted, []byte(secret)) == 1
	}

	if CompareSecret(g.hash, secret) != nil {
		return false
	}
	g.mu.Lock()
	g.accepted = []byte(secret)
	g.mu.Unlock()
	return true
}

package auth

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/models"
)

// IdentityProvider tells the check-in core who is checking in. It returns nil
// when nobody is authenticated.
type IdentityProvider interface {
	CurrentIdentity() *models.Identity
}

// DefaultName is given to accounts created without a name.
const DefaultName = "John Doe"

type account struct {
	identity     models.Identity
	passwordHash string
}

// MockProvider is an in-memory stand-in for a real identity system. The first
// login for an email creates the account; later logins must present the same
// password.
type MockProvider struct {
	mu       sync.RWMutex
	service  *Service
	accounts map[string]*account
	current  *models.Identity
	newID    func() string
}

// NewMockProvider creates a mock identity provider.
func NewMockProvider(service *Service) *MockProvider {
	return &MockProvider{
		service:  service,
		accounts: make(map[string]*account),
		newID: func() string {
			return fmt.Sprintf("EMP%d", 10000+rand.Intn(90000))
		},
	}
}

// Login signs in (or signs up) and makes the identity current.
func (p *MockProvider) Login(req models.LoginRequest) (*models.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := p.service.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := p.service.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[email]
	if ok {
		if !p.service.CheckPassword(req.Password, acct.passwordHash) {
			return nil, ErrInvalidCredentials
		}
	} else {
		hash, err := p.service.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = DefaultName
		}
		acct = &account{
			identity:     models.Identity{Name: name, Email: email, EmployeeID: p.newID()},
			passwordHash: hash,
		}
		p.accounts[email] = acct
		log.WithFields(log.Fields{"employee_id": acct.identity.EmployeeID, "email": email}).Info("Created mock account")
	}

	id := acct.identity
	p.current = &id
	return &id, nil
}

// Logout clears the current identity.
func (p *MockProvider) Logout() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// CurrentIdentity returns a copy of the signed-in identity, or nil.
func (p *MockProvider) CurrentIdentity() *models.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

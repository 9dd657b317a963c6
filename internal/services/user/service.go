package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/api/middleware"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

const (
	otpTTL    = 5 * time.Minute
	otpDigits = 6
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,14}$`)

// Service implements the auth and profile operations.
type Service struct {
	repo   Repository
	kv     store.Store
	bus    events.Bus
	auth   middleware.AuthConfig
	logger *logging.Logger

	// sendOTP delivers the code out of band. The default logs it, which
	// is what local runs use; production wires an SMS gateway.
	sendOTP func(phone, code string)
}

// NewService wires the user service.
func NewService(repo Repository, kv store.Store, bus events.Bus, auth middleware.AuthConfig, logger *logging.Logger) *Service {
	s := &Service{repo: repo, kv: kv, bus: bus, auth: auth, logger: logger}
	s.sendOTP = func(phone, code string) {
		s.logger.Info("OTP issued", zap.String("phone", mask(phone)))
	}
	return s
}

func otpKey(phone string) string { return "otp:" + phone }

// RequestOTP generates a code for phone and stores only its hash.
func (s *Service) RequestOTP(ctx context.Context, phone string) error {
	if !phonePattern.MatchString(phone) {
		return apierror.Validation("Invalid phone number",
			apierror.FieldError{Field: "phone", Message: "must be 10 to 14 digits", Code: "format"})
	}

	code, err := generateOTP()
	if err != nil {
		return apierror.Internal(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return apierror.Internal(err)
	}
	if err := s.kv.SetEX(ctx, otpKey(phone), string(hash), otpTTL); err != nil {
		return apierror.Wrap(apierror.CodeServiceUnavailable, "Could not issue OTP", err)
	}

	s.sendOTP(phone, code)
	return nil
}

// VerifyOTP checks the code, consumes it, creates the user on first
// login, and returns a signed token.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (User, string, error) {
	hash, err := s.kv.Get(ctx, otpKey(phone))
	if err != nil {
		return User{}, "", apierror.New(apierror.CodeOTPExpired, "OTP expired or never requested")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return User{}, "", apierror.New(apierror.CodeOTPInvalid, "Incorrect OTP")
	}
	// One shot: a correct code cannot be replayed.
	_ = s.kv.Del(ctx, otpKey(phone))

	u, found, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return User{}, "", apierror.Internal(err)
	}
	if !found {
		now := time.Now().UTC()
		u = User{ID: newID(), Phone: phone, CreatedAt: now, UpdatedAt: now}
		if err := s.repo.Create(ctx, u); err != nil {
			return User{}, "", apierror.Internal(err)
		}
		if err := s.bus.Publish(ctx, events.NewEvent(
			events.UserRegistered, "user", u.ID, "user-service",
			map[string]any{"userId": u.ID, "phone": mask(phone)},
		)); err != nil {
			s.logger.Warn("failed to publish user.registered", zap.Error(err))
		}
	}

	token, err := middleware.IssueToken(s.auth, u.ID, u.Phone)
	if err != nil {
		return User{}, "", apierror.Internal(err)
	}
	return u, token, nil
}

// Profile returns the user by ID.
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	u, found, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return User{}, apierror.Internal(err)
	}
	if !found {
		return User{}, apierror.NotFound("user", userID)
	}
	return u, nil
}

// UpdateProfile applies name/email changes.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (User, error) {
	u, err := s.Profile(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, apierror.Internal(err)
	}
	return u, nil
}

// Addresses lists the user's saved addresses.
func (s *Service) Addresses(ctx context.Context, userID string) ([]Address, error) {
	list, err := s.repo.Addresses(ctx, userID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return list, nil
}

// AddAddress saves a new address.
func (s *Service) AddAddress(ctx context.Context, a Address) (Address, error) {
	var fields []apierror.FieldError
	if a.Line1 == "" {
		fields = append(fields, apierror.FieldError{Field: "line1", Message: "required", Code: "required"})
	}
	if a.City == "" {
		fields = append(fields, apierror.FieldError{Field: "city", Message: "required", Code: "required"})
	}
	if len(a.Pincode) != 6 {
		fields = append(fields, apierror.FieldError{Field: "pincode", Message: "must be 6 digits", Code: "format"})
	}
	if len(fields) > 0 {
		return Address{}, apierror.Validation("Invalid address", fields...)
	}

	a.ID = newID()
	a.CreatedAt = time.Now().UTC()
	if err := s.repo.AddAddress(ctx, a); err != nil {
		return Address{}, apierror.Internal(err)
	}
	return a, nil
}

func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// mask keeps only the last two digits of a phone number for logs.
func mask(phone string) string {
	if len(phone) <= 2 {
		return "**"
	}
	masked := make([]byte, len(phone)-2)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + phone[len(phone)-2:]
}

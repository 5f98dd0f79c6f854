// Package reset implements password recovery through a code sent by SMS.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"campusmarket/internal/apperr"
	"campusmarket/internal/auth"
	"campusmarket/internal/notify"
	"campusmarket/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	minPasswordLength = 8
	// maxAttempts wrong codes burn the pending code.
	maxAttempts = 5
)

type Users interface {
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int, passwordHash string) error
}

type Service struct {
	users    Users
	codes    CodeStore
	sms      notify.Channel
	codeTTL  time.Duration
	tokenTTL time.Duration
	log      zerolog.Logger

	newCode func() (string, error)
}

// NewService builds the reset flow. sms may be nil, in which case codes are stored but not sent.
func NewService(users Users, codes CodeStore, sms notify.Channel, codeTTL, tokenTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		users:    users,
		codes:    codes,
		sms:      sms,
		codeTTL:  codeTTL,
		tokenTTL: tokenTTL,
		log:      log,
		newCode:  randomCode,
	}
}

// SendCode texts a reset code to phone when it belongs to a user.
// The result never reveals whether the phone is registered.
func (s *Service) SendCode(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return apperr.Validation("phone is required")
	}

	user, err := s.users.GetUserByPhone(ctx, phone)
	if apperr.Is(err, apperr.KindNotFound) {
		s.log.Debug().Msg("reset code requested for unknown phone")
		return nil
	}
	if err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return apperr.Internal("failed to generate code", err)
	}
	if err := s.codes.SaveCode(ctx, phone, code, s.codeTTL); err != nil {
		return err
	}

	if s.sms == nil {
		s.log.Warn().Int("user_id", user.ID).Msg("sms channel not configured, reset code not sent")
		return nil
	}
	body := fmt.Sprintf("Your CampusMarket password reset code is %s. It expires in %d minutes.", code, int(s.codeTTL.Minutes()))
	if err := s.sms.Send(ctx, phone, body); err != nil {
		s.log.Error().Err(err).Int("user_id", user.ID).Msg("failed to send reset code")
	}
	return nil
}

// VerifyCode exchanges a valid code for a one-time reset token.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (string, error) {
	phone = strings.TrimSpace(phone)
	invalid := apperr.Validation("invalid or expired code")

	stored, err := s.codes.Code(ctx, phone)
	if apperr.Is(err, apperr.KindNotFound) {
		return "", invalid
	}
	if err != nil {
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		attempts, err := s.codes.FailAttempt(ctx, phone, s.codeTTL)
		if err != nil {
			return "", err
		}
		if attempts >= maxAttempts {
			s.log.Warn().Int("attempts", attempts).Msg("too many wrong reset codes, code discarded")
			if err := s.codes.DeleteCode(ctx, phone); err != nil {
				return "", err
			}
		}
		return "", invalid
	}

	user, err := s.users.GetUserByPhone(ctx, phone)
	if apperr.Is(err, apperr.KindNotFound) {
		return "", invalid
	}
	if err != nil {
		return "", err
	}

	if err := s.codes.DeleteCode(ctx, phone); err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.codes.SaveToken(ctx, token, user.ID, s.tokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword sets a new password for the user bound to token. The token is single use.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	userID, err := s.codes.ConsumeToken(ctx, token)
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.Validation("invalid or expired token")
	}
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.log.Info().Int("user_id", userID).Msg("password reset")
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

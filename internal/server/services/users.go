package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/cryptox"
	"github.com/dmitrijs2005/seqsubmit/internal/logging"
	"github.com/dmitrijs2005/seqsubmit/internal/server/auth"
	"github.com/dmitrijs2005/seqsubmit/internal/server/config"
	"github.com/dmitrijs2005/seqsubmit/internal/server/mail"
	"github.com/dmitrijs2005/seqsubmit/internal/server/metrics"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/repositories/repomanager"
)

const msgEmailInUse = "This email address is already in use"

// LoginResult is returned on a successful login.
type LoginResult struct {
	User        models.UserSummary `json:"user"`
	AccessToken string             `json:"access_token"`
}

// UserService provides account operations:
// - Register / CreateAdmin: create users
// - Activate: consume an emailed activation token
// - Login / AdminToken: verify credentials and mint tokens
// - CheckPassword / SetPassword: verify and rotate passwords
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	mailer                      mail.Sender
	metrics                     *metrics.Metrics
	log                         logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	adminTokenValidityDuration  time.Duration
	activationURL               string
	allowedDomains              []string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mailer mail.Sender, mx *metrics.Metrics, log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		mailer:                      mailer,
		metrics:                     mx,
		log:                         log.With("module", "users"),
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		adminTokenValidityDuration:  cfg.AdminTokenValidityDuration,
		activationURL:               strings.TrimSuffix(cfg.ActivationURL, "/"),
		allowedDomains:              cfg.AllowedEmailDomains,
	}
}

// Register creates an unactivated account and emails its activation link.
// A failed email is logged; the account stays registered.
func (s *UserService) Register(ctx context.Context, email, password string, isAdmin bool) (Reply, error) {
	email = strings.TrimSpace(email)
	if msg := s.credentialsProblem(email, password); msg != "" {
		s.log.Info(ctx, "signup rejected", "email", email, "reason", msg)
		return rejectReply(msg), nil
	}

	token, err := cryptox.NewActivationToken()
	if err != nil {
		return Reply{}, common.ErrorInternal
	}

	reply, err := s.create(ctx, &models.User{
		Email:           email,
		IsAdmin:         isAdmin,
		ActivationToken: cryptox.HashToken(token),
	}, password)
	if err != nil || !reply.OK() {
		return reply, err
	}

	msg := mail.Message{
		To:      email,
		Subject: "Activate your account",
		Body: "Thank you for signing up. Please activate your account by visiting the following link:\n\n" +
			s.activationURL + "/" + token + "\n",
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.EmailFailed()
		s.log.Warn(ctx, "activation email not sent", "email", email, "error", err)
	}

	return reply, nil
}

// CreateAdmin creates an activated admin account without sending email.
func (s *UserService) CreateAdmin(ctx context.Context, email, password string) (Reply, error) {
	email = strings.TrimSpace(email)
	if msg := s.credentialsProblem(email, password); msg != "" {
		return rejectReply(msg), nil
	}
	return s.create(ctx, &models.User{Email: email, IsAdmin: true, Activated: true}, password)
}

func (s *UserService) credentialsProblem(email, password string) string {
	if msg := emailProblem(email, s.allowedDomains); msg != "" {
		return msg
	}
	return passwordProblem(password)
}

func (s *UserService) create(ctx context.Context, user *models.User, password string) (Reply, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return Reply{}, common.ErrorInternal
	}
	user.PasswordHash = hash

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if errors.Is(err, common.ErrorAlreadyExists) {
		return rejectReply(msgEmailInUse), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("error creating user: %w", err)
	}

	s.metrics.UserRegistered()
	s.log.Info(ctx, "user created", "id", u.ID, "email", u.Email, "admin", u.IsAdmin)
	return okReply(""), nil
}

const msgActivationUnknown = "Activation link is invalid or has already been used"

// Activate consumes token. Unknown or already used tokens change nothing
// and are answered informationally.
func (s *UserService) Activate(ctx context.Context, token string) (Reply, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return rejectReply("Invalid activation token"), nil
	}

	u, err := s.repomanager.Users(s.db).ActivateByToken(ctx, cryptox.HashToken(token))
	if errors.Is(err, common.ErrorNotFound) {
		s.log.Info(ctx, "activation token not found")
		return okReply(msgActivationUnknown), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("error activating user: %w", err)
	}

	s.log.Info(ctx, "user activated", "id", u.ID, "email", u.Email)
	return okReply("Account activated"), nil
}

// Login checks the credentials of an activated account and issues an
// access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, Reply, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, common.ErrorNotFound) {
		return nil, rejectReply("Unknown email address"), nil
	}
	if err != nil {
		return nil, Reply{}, common.ErrorInternal
	}
	if !user.Activated {
		return nil, rejectReply("User account is not yet activated"), nil
	}
	if !cryptox.CheckPassword(user.PasswordHash, password) {
		return nil, rejectReply("Incorrect password"), nil
	}

	token, err := auth.GenerateToken(identityOf(user), s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, Reply{}, common.ErrorInternal
	}
	return &LoginResult{User: user.Summary(), AccessToken: token}, okReply(""), nil
}

// AdminToken issues a long-lived token for an admin, meant for scripted
// result uploads.
func (s *UserService) AdminToken(ctx context.Context, who auth.Identity) (string, error) {
	if !who.IsAdmin {
		return "", common.ErrorUnauthorized
	}
	return auth.GenerateToken(who, s.jwtSecret, s.adminTokenValidityDuration)
}

// Identify resolves a token's user id to the current state of the account,
// so revoked admin rights or removed accounts take effect immediately.
func (s *UserService) Identify(ctx context.Context, userID string) (*auth.Identity, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorUnauthorized
	}
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !user.Activated {
		return nil, common.ErrorUnauthorized
	}
	id := identityOf(user)
	return &id, nil
}

// CheckPassword reports whether candidate is the password of email.
func (s *UserService) CheckPassword(ctx context.Context, email, candidate string) (bool, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cryptox.CheckPassword(user.PasswordHash, candidate), nil
}

// SetPassword replaces the password of email when current matches the
// stored hash, and reports whether it did.
func (s *UserService) SetPassword(ctx context.Context, email, current, next string) (bool, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !cryptox.CheckPassword(user.PasswordHash, current) {
		s.log.Info(ctx, "password change refused", "email", email)
		return false, nil
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return false, nil
	}
	if err := repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return false, fmt.Errorf("error updating password: %w", err)
	}

	s.log.Info(ctx, "password changed", "email", email)
	return true, nil
}

func (s *UserService) List(ctx context.Context) ([]models.UserSummary, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	out := make([]models.UserSummary, 0, len(list))
	for _, u := range list {
		out = append(out, u.Summary())
	}
	return out, nil
}

func identityOf(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}
}

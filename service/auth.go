package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"campusevents/apperr"
	"campusevents/auth"
	"campusevents/structs"
	"campusevents/utils"

	"golang.org/x/crypto/bcrypt"
)

const iiitEmailDomain = "iiit.ac.in"

var ErrBadCredentials = apperr.Unauthorized("Invalid email or password")

type AuthService struct {
	Users UserStore
	Now   func() time.Time
}

func NewAuthService(users UserStore) *AuthService {
	return &AuthService{Users: users, Now: time.Now}
}

type SignupInput struct {
	FirstName       string `json:"firstName" validate:"required,max=50"`
	LastName        string `json:"lastName" validate:"max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ParticipantType string `json:"participantType" validate:"required,oneof=iiit non-iiit"`
}

type OrganizerInput struct {
	OrganizerName  string `json:"organizerName" validate:"required,max=100"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8,max=72"`
	DiscordWebhook string `json:"discordWebhook" validate:"omitempty,url"`
}

type Session struct {
	Token string        `json:"token"`
	User  *structs.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isIIITEmail accepts the institute domain and its subdomains.
func isIIITEmail(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	return domain == iiitEmailDomain || strings.HasSuffix(domain, "."+iiitEmailDomain)
}

func (s *AuthService) createUser(ctx context.Context, user *structs.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(err, "hash password")
	}
	user.Password = string(hash)
	user.CreatedAt = s.Now().UTC()
	if user.UserID == "" {
		user.UserID = utils.GenerateID(12)
	}
	if err := s.Users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return apperr.Conflictf("An account with this email already exists")
		}
		return apperr.Wrap(err, "insert user")
	}
	return nil
}

// Signup registers a participant. IIIT participants must use an institute address.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	switch in.ParticipantType {
	case structs.ParticipantIIIT:
		if !isIIITEmail(email) {
			return nil, apperr.Validationf("IIIT participants must sign up with an %s email", iiitEmailDomain)
		}
	case structs.ParticipantNonIIIT:
	default:
		return nil, apperr.Validationf("Invalid participant type %q", in.ParticipantType)
	}

	user := &structs.User{
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Email:           email,
		Role:            structs.RoleParticipant,
		ParticipantType: in.ParticipantType,
	}
	if err := s.createUser(ctx, user, in.Password); err != nil {
		return nil, err
	}
	return s.session(user)
}

// CreateOrganizer provisions an organizer account. Admin only.
func (s *AuthService) CreateOrganizer(ctx context.Context, in OrganizerInput) (*structs.User, error) {
	user := &structs.User{
		FirstName:      strings.TrimSpace(in.OrganizerName),
		Email:          normalizeEmail(in.Email),
		Role:           structs.RoleOrganizer,
		OrganizerName:  strings.TrimSpace(in.OrganizerName),
		DiscordWebhook: strings.TrimSpace(in.DiscordWebhook),
	}
	if err := s.createUser(ctx, user, in.Password); err != nil {
		return nil, err
	}
	log.Printf("Organizer %s (%s) created", user.OrganizerName, user.UserID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, apperr.Wrap(err, "find user")
	}
	if user == nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return s.session(user)
}

func (s *AuthService) session(user *structs.User) (*Session, error) {
	token, err := auth.IssueToken(user, s.Now())
	if err != nil {
		return nil, apperr.Wrap(err, "sign token")
	}
	return &Session{Token: token, User: user}, nil
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, actor structs.Actor) (*structs.User, error) {
	user, err := s.Users.FindUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, apperr.Wrap(err, "find user")
	}
	if user == nil {
		return nil, apperr.NotFoundf("User not found")
	}
	return user, nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	existing, err := s.Users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	admin := &structs.User{FirstName: "Admin", Email: normalizeEmail(email), Role: structs.RoleAdmin}
	if err := s.createUser(ctx, admin, password); err != nil {
		return err
	}
	log.Printf("Admin account %s created", admin.Email)
	return nil
}

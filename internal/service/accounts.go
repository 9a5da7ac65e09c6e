package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/mail"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/token"
	"github.com/iliyamo/flasky/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already in use")
)

// LinkFunc turns a signed token into the absolute URL mailed to the user.
type LinkFunc func(tok string) string

// Options are the account settings taken from configuration.
type Options struct {
	AdminEmail  string
	BcryptCost  int
	TokenMaxAge time.Duration
}

// Accounts implements registration, login and the token-driven flows
// (confirmation, password reset, email change).
type Accounts struct {
	store    *repository.Store
	tokens   *token.Issuer
	composer *mail.Composer
	mailer   mail.Dispatcher
	opts     Options
	now      func() time.Time
}

func NewAccounts(store *repository.Store, tokens *token.Issuer, composer *mail.Composer, mailer mail.Dispatcher, opts Options) *Accounts {
	if opts.TokenMaxAge <= 0 {
		opts.TokenMaxAge = token.DefaultMaxAge
	}
	return &Accounts{store: store, tokens: tokens, composer: composer, mailer: mailer, opts: opts, now: time.Now}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// Register creates an unconfirmed account and mails the confirmation link.
// The administrator address, when configured, is told about the new user.
func (a *Accounts) Register(ctx context.Context, in RegisterInput, link LinkFunc) (*model.User, error) {
	email := utils.NormalizeEmail(in.Email)
	if err := model.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := model.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if taken, err := a.store.Users.EmailTaken(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}
	if taken, err := a.store.Users.UsernameTaken(ctx, in.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}

	u := &model.User{Username: in.Username}
	u.SetEmail(email)
	if err := u.SetPassword(in.Password, a.opts.BcryptCost); err != nil {
		return nil, err
	}
	now := a.now().UTC()
	u.MemberSince, u.LastSeen = now, now
	if err := a.store.CreateUser(ctx, u, a.opts.AdminEmail); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	logger.Infof("accounts: registered user id=%d username=%s", u.ID, u.Username)

	if err := a.ResendConfirmation(ctx, u, link); err != nil {
		return u, err
	}
	if a.opts.AdminEmail != "" {
		a.send(ctx, a.opts.AdminEmail, "New User", mail.TemplateNewUser, map[string]any{"User": u})
	}
	return u, nil
}

// Authenticate resolves email and password to a user. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := a.store.Users.GetByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ResendConfirmation mails a fresh confirmation link to u.
func (a *Accounts) ResendConfirmation(ctx context.Context, u *model.User, link LinkFunc) error {
	tok, err := a.tokens.Issue(token.Claim{Purpose: token.PurposeConfirm, UserID: u.ID})
	if err != nil {
		return err
	}
	a.send(ctx, u.Email, "Confirm Your Account", mail.TemplateConfirm,
		map[string]any{"User": u, "URL": link(tok)})
	return nil
}

// Confirm redeems a confirmation token for u. Forged, expired and foreign
// tokens all report false. Confirming twice is not an error.
func (a *Accounts) Confirm(ctx context.Context, u *model.User, raw string) (bool, error) {
	c, err := a.tokens.VerifyFor(raw, token.PurposeConfirm, a.opts.TokenMaxAge)
	if err != nil || c.UserID != u.ID {
		return false, nil
	}
	if u.Confirmed {
		return true, nil
	}
	u.Confirmed = true
	if err := a.store.Users.Update(ctx, u); err != nil {
		u.Confirmed = false
		return false, err
	}
	return true, nil
}

// RequestPasswordReset mails a reset link when email belongs to an account
// and does nothing otherwise.
func (a *Accounts) RequestPasswordReset(ctx context.Context, email string, link LinkFunc) error {
	u, err := a.store.Users.GetByEmail(ctx, utils.NormalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := a.tokens.Issue(token.Claim{Purpose: token.PurposeReset, UserID: u.ID})
	if err != nil {
		return err
	}
	a.send(ctx, u.Email, "Reset Your Password", mail.TemplateResetPassword,
		map[string]any{"User": u, "URL": link(tok)})
	return nil
}

// ResetPassword sets a new password for the token's subject.
func (a *Accounts) ResetPassword(ctx context.Context, raw, password string) (bool, error) {
	c, err := a.tokens.VerifyFor(raw, token.PurposeReset, a.opts.TokenMaxAge)
	if err != nil {
		return false, nil
	}
	u, err := a.store.Users.GetByID(ctx, c.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := u.SetPassword(password, a.opts.BcryptCost); err != nil {
		return false, err
	}
	if err := a.store.Users.Update(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}

// ChangePassword replaces the password after checking the current one.
func (a *Accounts) ChangePassword(ctx context.Context, u *model.User, oldPassword, newPassword string) error {
	if !u.VerifyPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	prev := u.PasswordHash
	if err := u.SetPassword(newPassword, a.opts.BcryptCost); err != nil {
		return err
	}
	if err := a.store.Users.Update(ctx, u); err != nil {
		u.PasswordHash = prev
		return err
	}
	return nil
}

// RequestEmailChange mails a change link to the new address after checking
// the password.
func (a *Accounts) RequestEmailChange(ctx context.Context, u *model.User, newEmail, password string, link LinkFunc) error {
	if !u.VerifyPassword(password) {
		return ErrInvalidCredentials
	}
	newEmail = utils.NormalizeEmail(newEmail)
	if err := model.ValidateEmail(newEmail); err != nil {
		return err
	}
	if taken, err := a.store.Users.EmailTaken(ctx, newEmail); err != nil {
		return err
	} else if taken {
		return ErrEmailTaken
	}
	tok, err := a.tokens.Issue(token.Claim{Purpose: token.PurposeChangeEmail, UserID: u.ID, NewEmail: newEmail})
	if err != nil {
		return err
	}
	a.send(ctx, newEmail, "Confirm your email address", mail.TemplateChangeEmail,
		map[string]any{"User": u, "URL": link(tok)})
	return nil
}

// ChangeEmail redeems an email-change token. In one transaction it swaps
// the address, re-derives the avatar hash and re-applies the admin-address
// role rule. The token is refused when it belongs to someone else, carries
// no address, or the address was registered since it was issued.
func (a *Accounts) ChangeEmail(ctx context.Context, u *model.User, raw string) (bool, error) {
	c, err := a.tokens.VerifyFor(raw, token.PurposeChangeEmail, a.opts.TokenMaxAge)
	if err != nil || c.UserID != u.ID || c.NewEmail == "" {
		return false, nil
	}

	next := *u
	ok := false
	err = a.store.InTx(ctx, func(tx *repository.Store) error {
		taken, err := tx.Users.EmailTaken(ctx, c.NewEmail)
		if err != nil || taken {
			return err
		}
		oldEmail := next.Email
		next.SetEmail(c.NewEmail)
		if err := a.reapplyRoleRule(ctx, tx, &next, oldEmail); err != nil {
			return err
		}
		if err := tx.Users.Update(ctx, &next); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil
			}
			return err
		}
		ok = true
		return nil
	})
	if err != nil || !ok {
		return false, err
	}
	*u = next
	return true, nil
}

// reapplyRoleRule re-runs the admin-address rule for users whose role came
// from it: holders of the default role, or administrators whose previous
// address was the admin address. Manually assigned roles are kept.
func (a *Accounts) reapplyRoleRule(ctx context.Context, tx *repository.Store, u *model.User, oldEmail string) error {
	if u.Role == nil || a.opts.AdminEmail == "" {
		return nil
	}
	byRule := u.Role.Default ||
		(u.Role.Name == model.RoleAdministrator &&
			utils.NormalizeEmail(oldEmail) == utils.NormalizeEmail(a.opts.AdminEmail))
	if !byRule {
		return nil
	}
	def, err := tx.Roles.Default(ctx)
	if err != nil {
		return err
	}
	admin, err := tx.Roles.GetByName(ctx, model.RoleAdministrator)
	if err != nil {
		return err
	}
	u.Role = model.ChooseRole(u.Email, a.opts.AdminEmail, admin, def)
	u.RoleID = u.Role.ID
	return nil
}

// Ping records activity for an authenticated request.
func (a *Accounts) Ping(ctx context.Context, u *model.User) error {
	u.Ping(a.now())
	return a.store.Users.Ping(ctx, u.ID, u.LastSeen)
}

func (a *Accounts) send(ctx context.Context, to, subject, tmpl string, data any) {
	if a.composer == nil || a.mailer == nil {
		return
	}
	m, err := a.composer.Compose(to, subject, tmpl, data)
	if err != nil {
		logger.Errorf("accounts: compose %s: %v", tmpl, err)
		return
	}
	a.mailer.Send(ctx, m)
}

package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/musicportal-backend/internal/accounts"
	"github.com/angelmondragon/musicportal-backend/pkg/auth"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/musicportal-backend/pkg/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRequestedBy is recorded when nobody is signed in at submission.
const DefaultRequestedBy = "Anonymous"

const (
	minUsernameLength = 3
	maxUsernameLength = 64
)

// Service owns the Pending -> Approved | Rejected lifecycle.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error)
	Approve(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	Reject(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	ListPending(ctx context.Context) ([]RequestDTO, error)
	ListAll(ctx context.Context) ([]RequestDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error)
	PendingFor(ctx context.Context, username string) (bool, error)
}

// AccountCreator is the slice of the identity provider approval needs.
type AccountCreator interface {
	CreateAccountWithHash(ctx context.Context, input accounts.CreateAccountWithHashInput) (*models.Account, error)
	AddToRole(ctx context.Context, accountID uuid.UUID, role enums.Role) error
}

// AccountsFactory binds the identity provider to the approval transaction.
type AccountsFactory func(tx *gorm.DB) AccountCreator

type txRunner interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies required to build the workflow engine.
type ServiceParams struct {
	DB             txRunner
	Accounts       AccountsFactory
	Outbox         outbox.Emitter
	PasswordConfig config.PasswordConfig
	Metrics        *metrics.PortalMetrics
	Logger         *logger.Logger
	Clock          func() time.Time
}

type service struct {
	db          txRunner
	repo        *Repository
	accounts    AccountsFactory
	outbox      outbox.Emitter
	passwordCfg config.PasswordConfig
	metrics     *metrics.PortalMetrics
	logg        *logger.Logger
	validate    *validator.Validate
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("accounts factory is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		db:          params.DB,
		repo:        NewRepository(params.DB.DB()),
		accounts:    params.Accounts,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		metrics:     params.Metrics,
		logg:        params.Logger,
		validate:    validator.New(),
		now:         now,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if fields := s.validateSubmission(username, email, input.Password); len(fields) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid registration request").WithDetails(fields)
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	requestedBy := strings.TrimSpace(input.RequestedBy)
	if requestedBy == "" {
		requestedBy = DefaultRequestedBy
	}

	req := &models.RegistrationRequest{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		RequestedBy:  requestedBy,
		RequestDate:  s.now(),
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := NewRepository(tx).Create(ctx, req); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a registration request for this username is already pending")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create registration request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationSubmitted,
			AggregateType: enums.AggregateRegistrationRequest,
			AggregateID:   req.ID,
			Actor:         &outbox.ActorRef{Username: requestedBy},
			Data: payloads.RegistrationSubmittedEvent{
				RequestID:   req.ID,
				Username:    req.Username,
				Email:       req.Email,
				RequestedBy: req.RequestedBy,
				RequestDate: req.RequestDate,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRegistration("submitted")
	s.logInfo(ctx, req.ID, "registration request submitted")
	return FromModel(req), nil
}

// validateSubmission returns field -> message for every malformed field. The
// password is checked against the account policy now so approval cannot fail
// on it later.
func (s *service) validateSubmission(username, email, password string) map[string]string {
	fields := map[string]string{}
	switch {
	case username == "":
		fields["username"] = "username is required"
	case len(username) < minUsernameLength || len(username) > maxUsernameLength:
		fields["username"] = fmt.Sprintf("username must be between %d and %d characters", minUsernameLength, maxUsernameLength)
	case !security.ValidUsername(username):
		fields["username"] = "username can only contain letters, digits or -._@+"
	}

	if email == "" {
		fields["email"] = "email is required"
	} else if err := s.validate.Var(email, "email"); err != nil {
		fields["email"] = "email is invalid"
	}

	if password == "" {
		fields["password"] = "password is required"
	} else if reasons := security.CheckPasswordPolicy(password); len(reasons) > 0 {
		fields["password"] = strings.Join(reasons, "; ")
	}
	return fields
}

func (s *service) Approve(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	req, err := s.find(ctx, s.repo, id)
	if err != nil {
		return err
	}
	if req.IsProcessed {
		return alreadyProcessed()
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		won, err := repo.MarkApproved(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark request approved")
		}
		if !won {
			// a concurrent reject deletes the row instead of processing it
			if _, err := s.find(ctx, repo, id); err != nil {
				return err
			}
			return alreadyProcessed()
		}

		provider := s.accounts(tx)
		account, err := provider.CreateAccountWithHash(ctx, accounts.CreateAccountWithHashInput{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: req.PasswordHash,
		})
		if err != nil {
			return identityError(err, "create account")
		}
		if err := provider.AddToRole(ctx, account.ID, enums.RoleUser); err != nil {
			return identityError(err, "assign user role")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationApproved,
			AggregateType: enums.AggregateRegistrationRequest,
			AggregateID:   req.ID,
			Actor:         actorRef(actor),
			Data: payloads.RegistrationApprovedEvent{
				RequestID:  req.ID,
				AccountID:  account.ID,
				Username:   account.Username,
				Email:      account.Email,
				ApprovedBy: actor.Username,
			},
		})
	})
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyProcessed) {
			s.metrics.IncRegistration("approve_failed")
		}
		return err
	}

	s.metrics.IncRegistration("approved")
	s.logInfo(ctx, id, "registration request approved")
	return nil
}

func (s *service) Reject(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := NewRepository(tx)
		req, err := s.find(ctx, txRepo, id)
		if err != nil {
			return err
		}
		if _, err := txRepo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete registration request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationRejected,
			AggregateType: enums.AggregateRegistrationRequest,
			AggregateID:   req.ID,
			Actor:         actorRef(actor),
			Data: payloads.RegistrationRejectedEvent{
				RequestID:  req.ID,
				Username:   req.Username,
				Email:      req.Email,
				RejectedBy: actor.Username,
			},
		})
	})
	if err != nil {
		return err
	}

	s.metrics.IncRegistration("rejected")
	s.logInfo(ctx, id, "registration request rejected")
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]RequestDTO, error) {
	rows, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending requests")
	}
	return fromModels(rows), nil
}

func (s *service) ListAll(ctx context.Context) ([]RequestDTO, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list requests")
	}
	return fromModels(rows), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error) {
	req, err := s.find(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	return FromModel(req), nil
}

func (s *service) PendingFor(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, nil
	}
	pending, err := s.repo.PendingExists(ctx, username)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check pending registration")
	}
	return pending, nil
}

func (s *service) find(ctx context.Context, r *Repository, id uuid.UUID) (*models.RegistrationRequest, error) {
	req, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "registration request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load registration request")
	}
	return req, nil
}

func (s *service) logInfo(ctx context.Context, id uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithField(ctx, "registration_request_id", id.String()), msg)
}

func alreadyProcessed() error {
	return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "registration request already processed")
}

// identityError keeps provider rejections typed and classifies anything else
// as a provider failure.
func identityError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	var idErr *accounts.IdentityError
	if errors.As(err, &idErr) {
		return pkgerrors.Wrap(pkgerrors.CodeIdentityProvider, err, msg).
			WithDetails(map[string]any{"reasons": idErr.Reasons})
	}
	return pkgerrors.Wrap(pkgerrors.CodeIdentityProvider, err, msg)
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Username: actor.Username, Role: actor.Role.String()}
}

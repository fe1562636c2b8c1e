package checkout

import (
	"time"

	"github.com/aulaviva/checkout/internal/domain/content"
	"github.com/aulaviva/checkout/internal/domain/errors"
	"github.com/google/uuid"
)

// MethodKind is the payment method family chosen by the buyer.
type MethodKind string

const (
	MethodCard         MethodKind = "card"
	MethodMobileMoney  MethodKind = "mobile_money"
	MethodBankTransfer MethodKind = "bank_transfer"
)

// GatewayName identifies the payment gateway handling a session.
type GatewayName string

const (
	GatewayStripe GatewayName = "stripe"
	GatewayPaytek GatewayName = "paytek"
)

// GatewayFor maps a payment method kind to the gateway that handles it.
// Cards charge synchronously through stripe; mobile money and bank transfers
// go through paytek and confirm asynchronously.
func GatewayFor(kind MethodKind) (GatewayName, error) {
	switch kind {
	case MethodCard:
		return GatewayStripe, nil
	case MethodMobileMoney, MethodBankTransfer:
		return GatewayPaytek, nil
	default:
		return "", errors.ErrInvalidPaymentMethod
	}
}

// IsAsync reports whether the method confirms out of band rather than at
// charge time.
func (k MethodKind) IsAsync() bool {
	return k == MethodMobileMoney || k == MethodBankTransfer
}

// Status is the checkout session status in the state machine.
type Status string

const (
	StatusCreated          Status = "created"
	StatusMethodSelected   Status = "method_selected"
	StatusProcessing       Status = "processing"
	StatusSucceeded        Status = "succeeded"
	StatusAwaitingExternal Status = "awaiting_external_confirmation"
	StatusFailed           Status = "failed"
	StatusGrantRequested   Status = "grant_requested"
	StatusCompleted        Status = "completed"
	StatusExpired          Status = "expired"
)

// Session is a bounded, stateful attempt to convert a non-entitled user into
// an entitled one via payment.
type Session struct {
	ID          uuid.UUID
	UserID      string
	Content     content.Reference
	MethodKind  MethodKind
	Gateway     GatewayName
	Status      Status
	// MethodDisplay holds non-sensitive display fragments of the selected
	// payment method (brand/last4, provider/phone suffix, bank/account suffix).
	MethodDisplay map[string]string
	LastError     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// NewSession creates a checkout session in the initial state.
func NewSession(userID string, ref content.Reference) (*Session, error) {
	if userID == "" {
		return nil, errors.NewValidationError("user_id", "cannot be empty")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Session{
		ID:            uuid.New(),
		UserID:        userID,
		Content:       ref,
		Status:        StatusCreated,
		MethodDisplay: make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransitionTo checks if the session can transition to the given status.
func (s *Session) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusCreated: {
			StatusMethodSelected,
			StatusGrantRequested, // free content skips the gateway entirely
		},
		StatusMethodSelected: {
			StatusProcessing,
			StatusFailed, // rejected before charging, e.g. a stale price
		},
		StatusProcessing: {
			StatusSucceeded,
			StatusAwaitingExternal,
			StatusFailed,
		},
		StatusAwaitingExternal: {
			StatusSucceeded,
			StatusFailed,
			StatusExpired,
		},
		StatusSucceeded: {
			StatusGrantRequested,
		},
		StatusGrantRequested: {
			StatusCompleted,
		},
		StatusFailed: {
			StatusMethodSelected, // explicit retry
		},
		StatusCompleted: {}, // terminal
		StatusExpired:   {}, // terminal
	}

	allowed, exists := transitions[s.Status]
	if !exists {
		return false
	}
	for _, a := range allowed {
		if a == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the session to a new status.
func (s *Session) TransitionTo(newStatus Status) error {
	if !s.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(s.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}

	s.Status = newStatus
	s.UpdatedAt = time.Now()

	if newStatus == StatusCompleted || newStatus == StatusExpired {
		now := time.Now()
		s.CompletedAt = &now
	}
	return nil
}

// SelectMethod records the chosen payment method and resolves its gateway.
// Selecting a method from the failed state is the explicit retry path.
func (s *Session) SelectMethod(kind MethodKind, display map[string]string) error {
	gw, err := GatewayFor(kind)
	if err != nil {
		return err
	}
	if err := s.TransitionTo(StatusMethodSelected); err != nil {
		return err
	}
	s.MethodKind = kind
	s.Gateway = gw
	if display != nil {
		s.MethodDisplay = display
	}
	s.LastError = nil
	return nil
}

// MarkProcessing transitions the session to processing.
func (s *Session) MarkProcessing() error {
	if s.MethodKind == "" {
		return errors.ErrMethodNotSelected
	}
	return s.TransitionTo(StatusProcessing)
}

// MarkSucceeded records a confirmed charge.
func (s *Session) MarkSucceeded() error {
	return s.TransitionTo(StatusSucceeded)
}

// MarkAwaitingExternal records that the gateway will confirm out of band.
func (s *Session) MarkAwaitingExternal() error {
	return s.TransitionTo(StatusAwaitingExternal)
}

// MarkFailed records a failed attempt; the user may retry by selecting a
// method again.
func (s *Session) MarkFailed(reason string) error {
	if err := s.TransitionTo(StatusFailed); err != nil {
		return err
	}
	s.LastError = &reason
	return nil
}

// MarkGrantRequested records that grant issuance has been requested.
func (s *Session) MarkGrantRequested() error {
	return s.TransitionTo(StatusGrantRequested)
}

// MarkCompleted records that the grant was issued.
func (s *Session) MarkCompleted() error {
	return s.TransitionTo(StatusCompleted)
}

// MarkExpired records that an awaiting session passed the pending window.
func (s *Session) MarkExpired() error {
	return s.TransitionTo(StatusExpired)
}

// IsTerminal checks if the session is in a terminal state.
func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusExpired
}

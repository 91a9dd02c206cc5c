// Package form drives one submission form: validation, the in-flight
// guard, success display and error classification.
package form

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/gateway"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/models"
	"github.com/dmitrijs2005/leadkeeper/internal/validation"
)

type State int

const (
	Idle State = iota
	Validating
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	MsgStored         = "Thank you! Your details have been saved."
	MsgStorage        = "Your details could not be saved on this device. Please try again."
	MsgNetwork        = "Network problem. Please check your connection and try again."
	MsgInvalidSession = "This session is closed or the PIN is wrong. Please check with the staff."
	MsgGeneric        = "Something went wrong. Please try again."
	MsgReturning      = "Welcome back! You already signed up in the last 24 hours."
)

// Submitter stores an entry; *gateway.Gateway implements it.
type Submitter interface {
	InsertEntry(ctx context.Context, in models.NewEntry) (gateway.InsertResult, error)
}

// Input is the raw form content.
type Input struct {
	Name      string
	Phone     string
	Pin       string
	IPAddress string
	UserAgent string
}

// Outcome describes what the form shows after Submit.
type Outcome struct {
	State    State
	Entry    *models.Entry
	Degraded bool
	// Field is set for validation failures.
	Field   string
	Message string
}

// afterFunc is a seam for tests.
var afterFunc = time.AfterFunc

type Option func(*Controller)

func WithLogger(l logging.Logger) Option {
	return func(c *Controller) { c.log = l.With("module", "form") }
}

// WithSuccessDisplay sets how long Success is shown before the form resets.
// Zero keeps Success until the next Submit.
func WithSuccessDisplay(d time.Duration) Option {
	return func(c *Controller) { c.successDisplay = d }
}

func WithReturnWindow(d time.Duration) Option {
	return func(c *Controller) { c.returnWindow = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// OnChange registers a callback for every state transition.
func OnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

type Controller struct {
	sub            Submitter
	mem            Memory
	log            logging.Logger
	successDisplay time.Duration
	returnWindow   time.Duration
	now            func() time.Time
	onChange       func(State)

	mu      sync.Mutex
	state   State
	message string
	timer   *time.Timer
}

func New(sub Submitter, mem Memory, opts ...Option) *Controller {
	c := &Controller{
		sub:            sub,
		mem:            mem,
		log:            logging.Nop(),
		successDisplay: 3 * time.Second,
		returnWindow:   24 * time.Hour,
		now:            time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message is the text shown for the current state.
func (c *Controller) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// setLocked changes state with c.mu held and returns the change
// notification, to be run after unlocking.
func (c *Controller) setLocked(s State, msg string) func() {
	c.state = s
	c.message = msg
	if c.onChange == nil {
		return func() {}
	}
	fn := c.onChange
	return func() { fn(s) }
}

// Submit validates in and hands it to the gateway. While a submission is in
// flight further calls fail with common.ErrBusy.
func (c *Controller) Submit(ctx context.Context, in Input) (Outcome, error) {
	c.mu.Lock()
	if c.state == Validating || c.state == Submitting {
		c.mu.Unlock()
		return Outcome{State: c.State()}, common.ErrBusy
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	notify := c.setLocked(Validating, "")
	c.mu.Unlock()
	notify()

	if fe := validateInput(in); fe != nil {
		c.mu.Lock()
		notify := c.setLocked(Idle, fe.Reason)
		c.mu.Unlock()
		notify()
		return Outcome{State: Idle, Field: fe.Field, Message: fe.Reason}, fe
	}

	c.mu.Lock()
	notify = c.setLocked(Submitting, "")
	c.mu.Unlock()
	notify()

	res, err := c.sub.InsertEntry(ctx, models.NewEntry{
		Name:       in.Name,
		Phone:      in.Phone,
		SessionPin: strings.TrimSpace(in.Pin),
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
	})
	if err != nil {
		return c.fail(ctx, err)
	}

	if res.Degraded {
		c.log.Warn(ctx, "entry stored locally after remote failure", "id", res.Entry.ID)
	}
	if err := c.mem.RecordSubmission(ctx, c.now()); err != nil {
		c.log.Warn(ctx, "failed to record last submission", "error", err)
	}

	c.mu.Lock()
	notify = c.setLocked(Success, MsgStored)
	if c.successDisplay > 0 {
		c.timer = afterFunc(c.successDisplay, c.reset)
	}
	c.mu.Unlock()
	notify()

	e := res.Entry
	return Outcome{State: Success, Entry: &e, Degraded: res.Degraded, Message: MsgStored}, nil
}

func (c *Controller) fail(ctx context.Context, err error) (Outcome, error) {
	var fe *common.FieldError
	if errors.As(err, &fe) {
		c.mu.Lock()
		notify := c.setLocked(Idle, fe.Reason)
		c.mu.Unlock()
		notify()
		return Outcome{State: Idle, Field: fe.Field, Message: fe.Reason}, err
	}

	msg := Classify(err)
	c.log.Warn(ctx, "submission failed", "error", err)

	c.mu.Lock()
	notify := c.setLocked(Failed, msg)
	c.mu.Unlock()
	notify()
	return Outcome{State: Failed, Message: msg}, err
}

// reset returns from Success to Idle.
func (c *Controller) reset() {
	c.mu.Lock()
	if c.state != Success {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	notify := c.setLocked(Idle, "")
	c.mu.Unlock()
	notify()
}

// Retry clears a failure so the form can be submitted again.
func (c *Controller) Retry() {
	c.mu.Lock()
	if c.state != Failed {
		c.mu.Unlock()
		return
	}
	notify := c.setLocked(Idle, "")
	c.mu.Unlock()
	notify()
}

// ReturningVisitor reports whether this client submitted within the return
// window.
func (c *Controller) ReturningVisitor(ctx context.Context) (bool, error) {
	last, ok, err := c.mem.LastSubmission(ctx)
	if err != nil || !ok {
		return false, err
	}
	return c.now().Sub(last) < c.returnWindow, nil
}

func validateInput(in Input) *common.FieldError {
	var fe *common.FieldError
	if err := validation.ValidateName(in.Name); errors.As(err, &fe) {
		return fe
	}
	if _, err := validation.ValidatePhone(in.Phone); errors.As(err, &fe) {
		return fe
	}
	if pin := strings.TrimSpace(in.Pin); pin != "" {
		if err := validation.ValidatePin(pin); err != nil {
			return &common.FieldError{Field: validation.FieldPin, Reason: "pin must be exactly 4 digits"}
		}
	}
	return nil
}

// Classify maps a failed submission to the message shown to the visitor.
func Classify(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, common.ErrStorageFailure):
		return MsgStorage
	case errors.Is(err, common.ErrInvalidSession):
		return MsgInvalidSession
	case errors.Is(err, common.ErrRemoteUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return MsgNetwork
	default:
		return MsgGeneric
	}
}

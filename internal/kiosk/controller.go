package kiosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendance-kiosk/internal/apiclient"
	"attendance-kiosk/internal/camera"
	"attendance-kiosk/internal/metrics"
	"attendance-kiosk/internal/model"
	"attendance-kiosk/internal/queue"
)

// DefaultCaptureInterval is the recognition polling period.
const DefaultCaptureInterval = 5 * time.Second

// minDocumentCheckLen is the length a typed document number must exceed
// before it is checked against the API.
const minDocumentCheckLen = 5

var (
	// ErrSubmissionInProgress rejects a second submit while one is running.
	ErrSubmissionInProgress = errors.New("a registration is already being submitted")
	// ErrDocumentExists means the document number is already registered.
	ErrDocumentExists = errors.New("document already registered")
	// ErrWrongMode rejects register-mode operations in recognize mode.
	ErrWrongMode = errors.New("kiosk is not in register mode")
)

// API is the part of the remote attendance API the controller drives.
type API interface {
	Recognize(ctx context.Context, frame []byte) (*model.RecognizedUser, error)
	CheckDocument(ctx context.Context, documentNumber string) (bool, error)
	GradeLevels(ctx context.Context) (model.GradeCatalog, error)
	CreateUser(ctx context.Context, user model.NewUser, face []byte) (json.RawMessage, error)
}

// Publisher receives kiosk events for the journal.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Options configures a Controller.
type Options struct {
	Interval  time.Duration
	Publisher Publisher
	Logger    *slog.Logger
}

// Controller owns the kiosk state and runs the recognition loop and the
// registration workflow against it.
type Controller struct {
	api      API
	cam      camera.Camera
	grades   *GradeLoader
	pub      Publisher
	log      *slog.Logger
	interval time.Duration

	mu    sync.Mutex
	state State

	loopMu   sync.Mutex
	baseCtx  context.Context
	stopLoop context.CancelFunc
	loopDone chan struct{}
	closed   bool
}

// New creates a controller in recognize mode. Call Start to begin polling.
func New(api API, cam camera.Camera, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultCaptureInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		api:      api,
		cam:      cam,
		grades:   NewGradeLoader(api),
		pub:      opts.Publisher,
		log:      opts.Logger,
		interval: opts.Interval,
		state:    Initial(),
	}
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Grades returns the cached grade catalog.
func (c *Controller) Grades() model.GradeCatalog {
	return c.grades.Catalog()
}

// GradeName resolves a grade id against the cached catalog.
func (c *Controller) GradeName(id int) string {
	return c.grades.GradeName(id)
}

func (c *Controller) dispatch(e Event) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, e)
	return c.state
}

// Start arms the recognition loop if the kiosk is in recognize mode. The
// loop and any request it has in flight end when ctx is cancelled, the
// mode changes, or Close is called.
func (c *Controller) Start(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.baseCtx = ctx
	if c.State().Mode == model.ModeRecognize {
		c.startLoopLocked()
	}
}

// Close stops the loop and waits for it to exit.
func (c *Controller) Close() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	c.closed = true
	c.stopLoopLocked()
}

// SetMode switches workflow. Entering recognize mode arms the loop;
// leaving it cancels the loop before returning.
func (c *Controller) SetMode(mode model.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}

	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if mode != model.ModeRecognize {
		c.stopLoopLocked()
	}
	prev := c.State().Mode
	c.dispatch(Event{Kind: EventModeChanged, Mode: mode})
	if mode == model.ModeRecognize && prev != mode {
		c.startLoopLocked()
	}
	c.log.Info("mode changed", "from", prev, "to", mode)
	return nil
}

func (c *Controller) startLoopLocked() {
	if c.closed || c.baseCtx == nil || c.stopLoop != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	done := make(chan struct{})
	c.stopLoop, c.loopDone = cancel, done
	go func() {
		defer close(done)
		c.loop(ctx)
	}()
}

func (c *Controller) stopLoopLocked() {
	if c.stopLoop == nil {
		return
	}
	c.stopLoop()
	<-c.loopDone
	c.stopLoop, c.loopDone = nil, nil
}

// loop fires one cycle per tick. Cycles run one after another on this
// goroutine, so a slow round trip delays the next cycle instead of
// overlapping it.
func (c *Controller) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	c.log.Debug("recognition loop started", "interval", c.interval)
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("recognition loop stopped")
			return
		case <-ticker.C:
			c.RunCycle(ctx)
		}
	}
}

// RunCycle performs one capture-and-recognize cycle.
func (c *Controller) RunCycle(ctx context.Context) {
	if c.State().Mode != model.ModeRecognize {
		return
	}
	cycle := uuid.NewString()

	frame, err := c.cam.Capture(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("capture failed", "cycle", cycle, "error", err)
		metrics.CaptureCycles.WithLabelValues("camera_error").Inc()
		s := c.dispatch(Event{Kind: EventCaptureFailed})
		c.publish(ctx, model.EventCameraError, "", "", s.Message)
		return
	}

	user, err := c.api.Recognize(ctx, frame.Data)
	if ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, apiclient.ErrNotRecognized):
		c.log.Info("person not recognized", "cycle", cycle)
		metrics.CaptureCycles.WithLabelValues("not_recognized").Inc()
		s := c.dispatch(Event{Kind: EventNotRecognized})
		c.publish(ctx, model.EventNotRecognized, "", "", s.Message)

	case err != nil:
		c.log.Error("recognition failed", "cycle", cycle, "error", err)
		metrics.CaptureCycles.WithLabelValues("system_error").Inc()
		s := c.dispatch(Event{Kind: EventRecognitionFailed})
		c.publish(ctx, model.EventRecognitionFailed, "", "", s.Message)

	default:
		kind := model.EventRecognized
		if user.AlreadyRegistered {
			kind = model.EventAlreadyRegistered
		}
		c.log.Info("person recognized", "cycle", cycle, "document", user.DocumentNumber, "already_registered", user.AlreadyRegistered)
		metrics.CaptureCycles.WithLabelValues(kind).Inc()
		s := c.dispatch(Event{Kind: EventRecognized, User: user})
		c.publish(ctx, kind, user.DocumentNumber, user.FullName(), s.Message)
	}
}

// SetField edits the registration draft. A document number longer than
// five characters is checked for duplicates right away, and choosing the
// student role loads the grade catalog. Neither lookup can fail the edit.
func (c *Controller) SetField(ctx context.Context, field Field, value string) (State, error) {
	if c.State().Mode != model.ModeRegister {
		return c.State(), ErrWrongMode
	}
	s := c.dispatch(Event{Kind: EventDraftEdited, Field: field, Value: value})

	switch {
	case field == FieldDocumentNumber && len(value) > minDocumentCheckLen:
		exists, err := c.api.CheckDocument(ctx, value)
		if err != nil {
			c.log.Warn("document check failed", "document", value, "error", err)
			return c.State(), nil
		}
		s = c.dispatch(Event{Kind: EventDocumentChecked, Document: value, Exists: exists})

	case field == FieldRoleID && s.Draft.IsStudent():
		if _, err := c.grades.Load(ctx); err != nil {
			c.log.Warn("grade catalog load failed", "error", err)
		}
	}
	return s, nil
}

// Preview summarises the draft for confirmation.
func (c *Controller) Preview() (Preview, error) {
	s := c.State()
	if err := s.Draft.Validate(); err != nil {
		return Preview{}, err
	}
	return s.Draft.PreviewWith(c.grades.Catalog()), nil
}

// Submit runs the registration workflow: duplicate check, then capture,
// then upload. Only one submission runs at a time.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.state.Mode != model.ModeRegister {
		c.mu.Unlock()
		return c.State(), ErrWrongMode
	}
	if c.state.Submitting {
		c.mu.Unlock()
		return c.State(), ErrSubmissionInProgress
	}
	draft := c.state.Draft
	user, err := draft.Payload()
	if err != nil {
		c.state = Reduce(c.state, Event{Kind: EventSubmitBlocked, Cause: blockCause(err)})
		s := c.state
		c.mu.Unlock()
		metrics.Registrations.WithLabelValues("incomplete").Inc()
		return s, err
	}
	c.state = Reduce(c.state, Event{Kind: EventSubmitStarted})
	c.mu.Unlock()

	log := c.log.With("document", user.DocumentNumber)

	// A failed check counts as "not registered".
	exists, err := c.api.CheckDocument(ctx, user.DocumentNumber)
	if err != nil {
		log.Warn("duplicate check failed, continuing", "error", err)
		exists = false
	}
	if exists {
		log.Info("registration blocked: document already registered")
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		s := c.dispatch(Event{Kind: EventSubmitFailed, Cause: CauseDuplicate, Document: draft.DocumentNumber})
		return s, ErrDocumentExists
	}

	frame, err := c.cam.Capture(ctx)
	if err != nil {
		log.Warn("registration capture failed", "error", err)
		metrics.Registrations.WithLabelValues("camera_error").Inc()
		s := c.dispatch(Event{Kind: EventSubmitFailed, Cause: CauseCamera})
		c.publish(ctx, model.EventCameraError, user.DocumentNumber, "", s.Message)
		return s, fmt.Errorf("capture face: %w", err)
	}

	if _, err := c.api.CreateUser(ctx, user, frame.Data); err != nil {
		log.Error("registration failed", "error", err)
		metrics.Registrations.WithLabelValues("failed").Inc()
		s := c.dispatch(Event{Kind: EventSubmitFailed, Cause: CauseServer, Detail: apiclient.Detail(err)})
		c.publish(ctx, model.EventRegistrationFailed, user.DocumentNumber, user.FirstName+" "+user.LastName, s.Message)
		return s, fmt.Errorf("create user: %w", err)
	}

	log.Info("user registered", "role", model.Role(user.RoleID).Name())
	metrics.Registrations.WithLabelValues("registered").Inc()
	s := c.dispatch(Event{Kind: EventSubmitSucceeded})
	c.publish(ctx, model.EventRegistered, user.DocumentNumber, user.FirstName+" "+user.LastName, s.Message)
	return s, nil
}

// ClearMessage dismisses the current message.
func (c *Controller) ClearMessage() State {
	return c.dispatch(Event{Kind: EventMessageCleared})
}

func (c *Controller) publish(ctx context.Context, kind, document, name, message string) {
	if c.pub == nil {
		return
	}
	msg, err := queue.NewMessage(kind, model.KioskEvent{
		ID:             uuid.NewString(),
		Kind:           kind,
		DocumentNumber: document,
		Name:           name,
		Message:        message,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		c.log.Error("encode kiosk event", "error", err)
		return
	}
	// Bounded so a full feed drops the event instead of stalling a cycle.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := c.pub.Publish(ctx, msg); err != nil {
		c.log.Warn("kiosk event dropped", "kind", kind, "error", err)
	}
}

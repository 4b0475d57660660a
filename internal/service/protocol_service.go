package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/events"
	"github.com/spec-kit/protocol-service/internal/offline"
	"github.com/spec-kit/protocol-service/internal/repository"
	"github.com/spec-kit/protocol-service/pkg/util"
)

// ProtocolService is the lifecycle engine. Every command is one
// logical transaction against one protocol: fetch, check
// preconditions, mutate a copy, write it back with exactly one audit
// entry appended, publish the event.
type ProtocolService struct {
	protocols  repository.ProtocolRepository
	queue      offline.Queue
	dispatcher events.Dispatcher
	logger     *zap.Logger
	validator  *draftValidator
	now        func() time.Time
}

// ProtocolDependencies bundles collaborators for the engine.
type ProtocolDependencies struct {
	ProtocolRepo repository.ProtocolRepository
	Queue        offline.Queue
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Now          func() time.Time
}

// NewProtocolService constructs the engine.
func NewProtocolService(deps ProtocolDependencies) *ProtocolService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProtocolService{
		protocols:  deps.ProtocolRepo,
		queue:      deps.Queue,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		validator:  newDraftValidator(),
		now:        now,
	}
}

// DriverInput identifies the reporting driver on a draft.
type DriverInput struct {
	ID    string `validate:"required"`
	Name  string `validate:"required"`
	Unit  string
	Phone string `validate:"required,phonedigits"`
}

// LineItemInput is one product line on a draft.
type LineItemInput struct {
	Code        string  `validate:"required"`
	Name        string  `validate:"required"`
	Unit        string
	Quantity    float64 `validate:"gt=0"`
	Expiry      string
	Observation string
}

// CreateInput describes a protocol draft. The id is client-generated
// so offline creation needs no server round-trip; when empty the
// server assigns one.
type CreateInput struct {
	ID              string                 `validate:"omitempty,uuid4"`
	Driver          DriverInput            `validate:"required"`
	Unit            string
	PDVCode         string
	InvoiceNumber   string
	ReplacementType domain.ReplacementType `validate:"required,oneof=shortage inversion damage"`
	Cause           string
	LineItems       []LineItemInput        `validate:"min=1,dive"`
	EvidencePhotos  domain.EvidencePhotos
}

// ClosureEvidenceInput is the proof-of-delivery bundle required when
// marking deliveries.
type ClosureEvidenceInput struct {
	SignedReceiptURL string
	GoodsPhotoURL    string
	Message          string
}

// CreateResult reports where a creation landed.
type CreateResult struct {
	Protocol *domain.Protocol
	// Queued is true when the store was unreachable and the submission
	// was staged on the offline queue instead.
	Queued bool
	// Duplicate is true when the client-generated id already existed;
	// the stored record wins and no event is published.
	Duplicate bool
}

// Create validates a draft and persists a new protocol. Driver
// submissions survive store outages by routing to the offline queue.
func (s *ProtocolService) Create(ctx context.Context, actor domain.Actor, input CreateInput) (*CreateResult, error) {
	if err := s.validator.ValidateDraft(input); err != nil {
		return nil, err
	}

	now := s.now()
	protocol := s.buildProtocol(actor, input, now)

	created, err := s.protocols.Upsert(ctx, protocol)
	if err != nil {
		if util.IsTransient(err) && actor.Role == domain.RoleDriver && s.queue != nil {
			if qerr := s.queue.Enqueue(ctx, offline.Envelope{
				ID:         protocol.ID,
				Op:         offline.OpCreate,
				Protocol:   *protocol,
				EnqueuedAt: now,
			}); qerr != nil {
				return nil, qerr
			}
			s.logger.Warn("protocol creation staged offline",
				zap.String("protocol_id", protocol.ID),
				zap.Error(err))
			return &CreateResult{Protocol: protocol, Queued: true}, nil
		}
		return nil, err
	}
	if !created {
		stored, err := s.protocols.GetByID(ctx, protocol.ID)
		if err != nil {
			return nil, err
		}
		return &CreateResult{Protocol: stored, Duplicate: true}, nil
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolCreated,
		ProtocolID: protocol.ID,
		Actor:      eventActor(actor),
		Payload: events.ProtocolCreatedPayload{
			Number:          protocol.Number,
			Unit:            protocol.Unit,
			ReplacementType: protocol.ReplacementType,
			Cause:           protocol.Cause,
			ItemCount:       len(protocol.LineItems),
		},
	})
	return &CreateResult{Protocol: protocol}, nil
}

func (s *ProtocolService) buildProtocol(actor domain.Actor, input CreateInput, now time.Time) *domain.Protocol {
	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	unit := input.Unit
	if unit == "" {
		unit = input.Driver.Unit
	}
	items := make([]domain.LineItem, 0, len(input.LineItems))
	for _, item := range input.LineItems {
		items = append(items, domain.LineItem{
			Code:        strings.TrimSpace(item.Code),
			Name:        strings.TrimSpace(item.Name),
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			Expiry:      item.Expiry,
			Observation: item.Observation,
		})
	}

	protocol := &domain.Protocol{
		ID:           id,
		Number:       domain.NewProtocolNumber(now),
		Status:       domain.ProtocolStatusOpen,
		CreatedAt:    now,
		CreationDate: now.Format(domain.DateLayout),
		CreationTime: now.Format(domain.TimeLayout),
		Driver: domain.DriverRef{
			ID:    input.Driver.ID,
			Name:  strings.TrimSpace(input.Driver.Name),
			Unit:  input.Driver.Unit,
			Phone: input.Driver.Phone,
		},
		Unit:            unit,
		PDVCode:         input.PDVCode,
		InvoiceNumber:   input.InvoiceNumber,
		ReplacementType: input.ReplacementType,
		Cause:           input.Cause,
		LineItems:       items,
		EvidencePhotos:  input.EvidencePhotos,
	}
	protocol.AuditTrail = []domain.AuditEntry{
		domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionCreated,
			fmt.Sprintf("protocol %s created", protocol.Number), now),
	}
	return protocol
}

// SetValidated toggles the validation gate. Turning it off demotes the
// status to open but deliberately leaves the launch flag untouched;
// that mismatch is a known product ambiguity, so it is logged rather
// than silently corrected.
func (s *ProtocolService) SetValidated(ctx context.Context, actor domain.Actor, protocolID string, value bool) (*domain.Protocol, error) {
	if !actor.CanValidate() {
		return nil, util.NewForbidden("validator role required")
	}
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if protocol.Status == domain.ProtocolStatusClosed {
		return nil, util.NewPreconditionFailed("closed protocol cannot be revalidated")
	}
	if protocol.Validated == value {
		return protocol, nil
	}

	next := protocol.Clone()
	next.Validated = value
	action := domain.ActionValidated
	if value {
		if next.Launched {
			next.Status = domain.ProtocolStatusInProgress
		}
	} else {
		action = domain.ActionValidationRevoked
		next.Status = domain.ProtocolStatusOpen
		if next.Launched {
			s.logger.Warn("validation revoked while protocol remains launched",
				zap.String("protocol_id", next.ID),
				zap.String("number", next.Number))
		}
	}

	entry := domain.NewAuditEntry(uuid.NewString(), actor, action, "", s.now())
	if err := s.protocols.Update(ctx, next, entry); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolValidated,
		ProtocolID: next.ID,
		Actor:      eventActor(actor),
		Payload:    events.GateChangedPayload{Value: value, NewStatus: next.Status},
	})
	return next, nil
}

// SetLaunched toggles the dispatch gate. Launching requires the
// protocol to be validated at this moment.
func (s *ProtocolService) SetLaunched(ctx context.Context, actor domain.Actor, protocolID string, value bool) (*domain.Protocol, error) {
	if !actor.CanLaunch() {
		return nil, util.NewForbidden("dispatcher role required")
	}
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if protocol.Status == domain.ProtocolStatusClosed {
		return nil, util.NewPreconditionFailed("closed protocol cannot be relaunched")
	}
	if value && !protocol.Validated {
		return nil, util.NewPreconditionFailed("protocol must be validated before launch")
	}
	if protocol.Launched == value {
		return protocol, nil
	}

	next := protocol.Clone()
	next.Launched = value
	action := domain.ActionLaunched
	if value {
		next.Status = domain.ProtocolStatusInProgress
	} else {
		action = domain.ActionLaunchRevoked
		next.Status = domain.ProtocolStatusOpen
	}

	entry := domain.NewAuditEntry(uuid.NewString(), actor, action, "", s.now())
	if err := s.protocols.Update(ctx, next, entry); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolLaunched,
		ProtocolID: next.ID,
		Actor:      eventActor(actor),
		Payload:    events.GateChangedPayload{Value: value, NewStatus: next.Status},
	})
	return next, nil
}

// DeliverItems marks the selected line items delivered. Delivering the
// last pending item closes the protocol and stamps the closure bundle;
// anything short of that is a partial delivery and the protocol stays
// in progress. Already-delivered items are never re-stamped.
func (s *ProtocolService) DeliverItems(ctx context.Context, actor domain.Actor, protocolID string, indices []int, evidence ClosureEvidenceInput, note string) (*domain.Protocol, error) {
	if !actor.CanDeliver() {
		return nil, util.NewForbidden("driver role required")
	}
	if len(indices) == 0 {
		return nil, util.NewPreconditionRequired("no line items selected", nil)
	}
	missing := map[string]any{}
	if strings.TrimSpace(evidence.SignedReceiptURL) == "" {
		missing["signed_receipt"] = "signed receipt photo is required"
	}
	if strings.TrimSpace(evidence.GoodsPhotoURL) == "" {
		missing["goods_photo"] = "delivered goods photo is required"
	}
	if len(missing) > 0 {
		return nil, util.NewPreconditionRequired("closure evidence photos missing", missing)
	}

	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if protocol.Status == domain.ProtocolStatusClosed {
		return nil, util.NewPreconditionFailed("protocol already closed")
	}

	now := s.now()
	next := protocol.Clone()
	stamped := 0
	for _, idx := range indices {
		if idx < 0 || idx >= len(next.LineItems) {
			return nil, util.NewValidationError("line item index out of range",
				map[string]any{"index": idx})
		}
		item := &next.LineItems[idx]
		if item.Delivered {
			continue
		}
		deliveredAt := now
		item.Delivered = true
		item.DeliveredAt = &deliveredAt
		item.DeliveredByDriverID = actor.ID
		item.DeliveredByDriverName = actor.Name
		stamped++
	}
	if stamped == 0 {
		return nil, util.NewPreconditionFailed("selected line items are already delivered")
	}

	var entry domain.AuditEntry
	if next.FullyDelivered() {
		closedAt := now
		next.Status = domain.ProtocolStatusClosed
		next.ClosedAt = &closedAt
		next.ClosureEvidence = &domain.ClosureEvidence{
			SignedReceiptURL: evidence.SignedReceiptURL,
			GoodsPhotoURL:    evidence.GoodsPhotoURL,
			Message:          note,
			ClosedByID:       actor.ID,
			ClosedByName:     actor.Name,
		}
		entry = domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionClosed, note, now)
	} else {
		next.Status = domain.ProtocolStatusInProgress
		entry = domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionPartialDelivery,
			fmt.Sprintf("%d of %d items delivered; %s", next.DeliveredCount(), len(next.LineItems), note), now)
	}

	if err := s.protocols.Update(ctx, next, entry); err != nil {
		if util.IsTransient(err) && actor.Role == domain.RoleDriver && s.queue != nil && next.Status == domain.ProtocolStatusClosed {
			next.AuditTrail = append(next.AuditTrail, entry)
			if qerr := s.queue.Enqueue(ctx, offline.Envelope{
				ID:         next.ID,
				Op:         offline.OpClose,
				Protocol:   *next,
				EnqueuedAt: now,
			}); qerr != nil {
				return nil, qerr
			}
			s.logger.Warn("protocol closure staged offline",
				zap.String("protocol_id", next.ID),
				zap.Error(err))
			return next, nil
		}
		return nil, err
	}

	if next.Status == domain.ProtocolStatusClosed {
		s.publishEvent(ctx, events.Event{
			Type:       events.EventProtocolClosed,
			ProtocolID: next.ID,
			Actor:      eventActor(actor),
			Payload:    events.ProtocolClosedPayload{Number: next.Number, Message: note},
		})
	} else {
		s.publishEvent(ctx, events.Event{
			Type:       events.EventItemsDelivered,
			ProtocolID: next.ID,
			Actor:      eventActor(actor),
			Payload: events.ItemsDeliveredPayload{
				Indices:        indices,
				DeliveredCount: next.DeliveredCount(),
				TotalCount:     len(next.LineItems),
			},
		})
	}
	return next, nil
}

// DeliverRemaining delivers every currently-undelivered item. Items
// already delivered are untouched.
func (s *ProtocolService) DeliverRemaining(ctx context.Context, actor domain.Actor, protocolID string, evidence ClosureEvidenceInput, note string) (*domain.Protocol, error) {
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	indices := protocol.UndeliveredIndices()
	if len(indices) == 0 {
		return nil, util.NewPreconditionFailed("all line items are already delivered")
	}
	return s.DeliverItems(ctx, actor, protocolID, indices, evidence, note)
}

// Reopen transitions a closed protocol back to an active state.
func (s *ProtocolService) Reopen(ctx context.Context, actor domain.Actor, protocolID, reason string) (*domain.Protocol, error) {
	if actor.Role == domain.RoleDriver {
		return nil, util.NewForbidden("back-office role required")
	}
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if protocol.Status != domain.ProtocolStatusClosed {
		return nil, util.NewPreconditionFailed("only closed protocols can be reopened")
	}

	next := protocol.Clone()
	// undelivered items should not survive closure, but the invariant
	// is re-checked rather than assumed
	if len(next.UndeliveredIndices()) > 0 {
		next.Status = domain.ProtocolStatusInProgress
	} else {
		next.Status = domain.ProtocolStatusOpen
	}
	next.ClosedAt = nil

	entry := domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionReopened, reason, s.now())
	if err := s.protocols.Update(ctx, next, entry); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolReopened,
		ProtocolID: next.ID,
		Actor:      eventActor(actor),
		Payload:    events.ProtocolReopenedPayload{Reason: reason, NewStatus: next.Status},
	})
	return next, nil
}

// Hide soft-deletes the protocol. Hidden protocols disappear from
// default views but are never physically destroyed.
func (s *ProtocolService) Hide(ctx context.Context, actor domain.Actor, protocolID string) (*domain.Protocol, error) {
	if !actor.CanAdminister() {
		return nil, util.NewForbidden("admin role required")
	}
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if protocol.Hidden {
		return nil, util.NewPreconditionFailed("protocol already hidden")
	}

	next := protocol.Clone()
	next.Hidden = true
	entry := domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionHidden, "", s.now())
	if err := s.protocols.Update(ctx, next, entry); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolHidden,
		ProtocolID: next.ID,
		Actor:      eventActor(actor),
	})
	return next, nil
}

// ForceClose is the administrative override that closes a protocol
// regardless of pending line items. The distinct audit action lets
// downstream consumers tell forced closures from normal ones.
func (s *ProtocolService) ForceClose(ctx context.Context, actor domain.Actor, protocolID, message string) (*domain.Protocol, error) {
	if !actor.CanAdminister() {
		return nil, util.NewForbidden("admin role required")
	}
	protocol, err := s.protocols.GetByID(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	if protocol.Status == domain.ProtocolStatusClosed {
		return nil, util.NewPreconditionFailed("protocol already closed")
	}

	now := s.now()
	next := protocol.Clone()
	closedAt := now
	next.Status = domain.ProtocolStatusClosed
	next.ClosedAt = &closedAt
	next.ClosureEvidence = &domain.ClosureEvidence{
		Message:      message,
		ClosedByID:   actor.ID,
		ClosedByName: actor.Name,
	}

	entry := domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionForceClosed, message, now)
	if err := s.protocols.Update(ctx, next, entry); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolForceClosed,
		ProtocolID: next.ID,
		Actor:      eventActor(actor),
		Payload:    events.ProtocolClosedPayload{Number: next.Number, Forced: true, Message: message},
	})
	return next, nil
}

// Get fetches one protocol with its audit trail.
func (s *ProtocolService) Get(ctx context.Context, protocolID string) (*domain.Protocol, error) {
	return s.protocols.GetByID(ctx, protocolID)
}

// List returns protocols matching the filter; hidden ones are excluded
// unless explicitly requested.
func (s *ProtocolService) List(ctx context.Context, filter repository.ProtocolFilter) ([]domain.Protocol, error) {
	return s.protocols.ListWithFilter(ctx, filter)
}

// SubmitQueued replays one offline envelope against the store. Create
// envelopes rely on upsert-by-id for idempotency; close envelopes
// re-apply delivery state onto the current record and no-op when the
// protocol is already closed.
func (s *ProtocolService) SubmitQueued(ctx context.Context, env offline.Envelope) error {
	switch env.Op {
	case offline.OpCreate:
		queued := env.Protocol
		created, err := s.protocols.Upsert(ctx, &queued)
		if err != nil {
			return err
		}
		if created {
			s.publishEvent(ctx, events.Event{
				Type:       events.EventProtocolCreated,
				ProtocolID: queued.ID,
				Actor:      events.Actor{ID: queued.Driver.ID, Name: queued.Driver.Name, Role: domain.RoleDriver},
				Payload: events.ProtocolCreatedPayload{
					Number:          queued.Number,
					Unit:            queued.Unit,
					ReplacementType: queued.ReplacementType,
					Cause:           queued.Cause,
					ItemCount:       len(queued.LineItems),
					Offline:         true,
				},
			})
		}
		return nil
	case offline.OpClose:
		return s.replayClosure(ctx, env)
	default:
		return util.NewValidationError("unknown offline op", map[string]any{"op": string(env.Op)})
	}
}

func (s *ProtocolService) replayClosure(ctx context.Context, env offline.Envelope) error {
	current, err := s.protocols.GetByID(ctx, env.ID)
	if err != nil {
		return err
	}
	if current.Status == domain.ProtocolStatusClosed {
		return nil
	}

	queued := env.Protocol
	next := current.Clone()
	for i := range next.LineItems {
		if i >= len(queued.LineItems) {
			break
		}
		if queued.LineItems[i].Delivered && !next.LineItems[i].Delivered {
			next.LineItems[i] = queued.LineItems[i]
		}
	}
	next.Status = domain.ProtocolStatusClosed
	next.ClosedAt = queued.ClosedAt
	next.ClosureEvidence = queued.ClosureEvidence

	var entry domain.AuditEntry
	if n := len(queued.AuditTrail); n > 0 {
		entry = queued.AuditTrail[n-1]
	} else {
		actor := domain.Actor{ID: queued.Driver.ID, Name: queued.Driver.Name, Role: domain.RoleDriver}
		entry = domain.NewAuditEntry(uuid.NewString(), actor, domain.ActionClosed, "closed offline", s.now())
	}

	if err := s.protocols.Update(ctx, next, entry); err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:       events.EventProtocolClosed,
		ProtocolID: next.ID,
		Actor:      events.Actor{ID: queued.Driver.ID, Name: queued.Driver.Name, Role: domain.RoleDriver},
		Payload:    events.ProtocolClosedPayload{Number: next.Number, Message: entry.Note},
	})
	return nil
}

func (s *ProtocolService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}
}

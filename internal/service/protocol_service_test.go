package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/events"
	"github.com/spec-kit/protocol-service/internal/offline"
	"github.com/spec-kit/protocol-service/internal/repository"
	"github.com/spec-kit/protocol-service/pkg/util"
)

// fakeProtocolRepo mirrors the postgres repository semantics in memory:
// upsert-by-id idempotency and version-checked updates that append one
// audit entry.
type fakeProtocolRepo struct {
	mu      sync.Mutex
	records map[string]*domain.Protocol
	// failNext makes the next write fail with the given error.
	failNext error
}

func newFakeProtocolRepo() *fakeProtocolRepo {
	return &fakeProtocolRepo{records: map[string]*domain.Protocol{}}
}

func (r *fakeProtocolRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *fakeProtocolRepo) Upsert(_ context.Context, protocol *domain.Protocol) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return false, err
	}
	if _, exists := r.records[protocol.ID]; exists {
		return false, nil
	}
	stored := protocol.Clone()
	stored.Version = 1
	r.records[protocol.ID] = stored
	protocol.Version = 1
	return true, nil
}

func (r *fakeProtocolRepo) Update(_ context.Context, protocol *domain.Protocol, entry domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	stored, exists := r.records[protocol.ID]
	if !exists {
		return util.NewNotFound("protocol", map[string]any{"id": protocol.ID})
	}
	if stored.Version != protocol.Version {
		return util.NewConcurrentModification("protocol", protocol.Version, stored.Version)
	}
	next := protocol.Clone()
	next.Version++
	next.AuditTrail = append(next.AuditTrail, entry)
	r.records[protocol.ID] = next
	protocol.Version = next.Version
	protocol.AuditTrail = append([]domain.AuditEntry(nil), next.AuditTrail...)
	return nil
}

func (r *fakeProtocolRepo) GetByID(_ context.Context, id string) (*domain.Protocol, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.records[id]
	if !exists {
		return nil, util.NewNotFound("protocol", map[string]any{"id": id})
	}
	return stored.Clone(), nil
}

func (r *fakeProtocolRepo) GetByNumber(_ context.Context, number string) (*domain.Protocol, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.records {
		if stored.Number == number {
			return stored.Clone(), nil
		}
	}
	return nil, util.NewNotFound("protocol", map[string]any{"number": number})
}

func (r *fakeProtocolRepo) ListWithFilter(_ context.Context, filter repository.ProtocolFilter) ([]domain.Protocol, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Protocol
	for _, stored := range r.records {
		if stored.Hidden && !filter.IncludeHidden {
			continue
		}
		out = append(out, *stored.Clone())
	}
	return out, nil
}

var (
	driverActor     = domain.Actor{ID: "drv-1", Name: "Carlos Mendes", Role: domain.RoleDriver}
	validatorActor  = domain.Actor{ID: "val-1", Name: "Ana Souza", Role: domain.RoleValidator}
	dispatcherActor = domain.Actor{ID: "dsp-1", Name: "Rita Lima", Role: domain.RoleDispatcher}
	adminActor      = domain.Actor{ID: "adm-1", Name: "Root", Role: domain.RoleAdmin}
)

func validCreateInput(itemCount int) CreateInput {
	items := make([]LineItemInput, 0, itemCount)
	for i := 0; i < itemCount; i++ {
		items = append(items, LineItemInput{
			Code:     "SKU-100",
			Name:     "Mineral Water 500ml",
			Unit:     "cx",
			Quantity: 2,
		})
	}
	return CreateInput{
		Driver: DriverInput{
			ID:    driverActor.ID,
			Name:  driverActor.Name,
			Unit:  "CD-Norte",
			Phone: "+55 11 98765-4321",
		},
		Unit:            "CD-Norte",
		PDVCode:         "PDV-42",
		InvoiceNumber:   "NF-8891",
		ReplacementType: domain.ReplacementShortage,
		Cause:           "two boxes missing from pallet",
		LineItems:       items,
		EvidencePhotos: domain.EvidencePhotos{
			DriverAtSiteURL: "/evidence/drv.jpg",
			ProductLotURL:   "/evidence/lot.jpg",
		},
	}
}

func newTestService(repo *fakeProtocolRepo, queue offline.Queue) *ProtocolService {
	return NewProtocolService(ProtocolDependencies{
		ProtocolRepo: repo,
		Queue:        queue,
		Now:          func() time.Time { return time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC) },
	})
}

func mustCreate(t *testing.T, svc *ProtocolService, input CreateInput) *domain.Protocol {
	t.Helper()
	result, err := svc.Create(context.Background(), driverActor, input)
	require.NoError(t, err)
	require.False(t, result.Queued)
	return result.Protocol
}

func closureEvidence() ClosureEvidenceInput {
	return ClosureEvidenceInput{
		SignedReceiptURL: "/evidence/receipt.jpg",
		GoodsPhotoURL:    "/evidence/goods.jpg",
	}
}

func TestProtocolService_Create(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)

	protocol := mustCreate(t, svc, validCreateInput(2))

	assert.Equal(t, domain.ProtocolStatusOpen, protocol.Status)
	assert.Regexp(t, `^PR-\d{14}-[A-Z0-9]{5}$`, protocol.Number)
	assert.Equal(t, "10/03/2026", protocol.CreationDate)
	assert.Equal(t, "14:30:00", protocol.CreationTime)
	assert.False(t, protocol.Validated)
	assert.False(t, protocol.Launched)
	require.Len(t, protocol.AuditTrail, 1)
	assert.Equal(t, domain.ActionCreated, protocol.AuditTrail[0].Action)
	assert.Equal(t, driverActor.ID, protocol.AuditTrail[0].ActorID)
}

func TestProtocolService_Create_CollectsAllViolations(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)

	input := CreateInput{
		Driver:          DriverInput{Phone: "123"},
		ReplacementType: domain.ReplacementDamage,
	}
	_, err := svc.Create(context.Background(), driverActor, input)
	require.Error(t, err)
	require.True(t, util.IsCode(err, "VALIDATION_FAILED"))

	details := util.ToDomainError(err).Details
	assert.Contains(t, details, "driver.id")
	assert.Contains(t, details, "driver.name")
	assert.Contains(t, details, "driver.phone")
	assert.Contains(t, details, "lineitems")
	assert.Contains(t, details, "evidence_photos.damage")
	assert.Contains(t, details, "evidence_photos.driver_at_site")
	assert.Contains(t, details, "evidence_photos.product_lot")
}

func TestProtocolService_Create_InversionSingleItemRule(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)

	input := validCreateInput(2)
	input.ReplacementType = domain.ReplacementInversion
	_, err := svc.Create(context.Background(), driverActor, input)
	require.Error(t, err)
	assert.Contains(t, util.ToDomainError(err).Details, "line_items")

	input = validCreateInput(1)
	input.ReplacementType = domain.ReplacementInversion
	_, err = svc.Create(context.Background(), driverActor, input)
	assert.NoError(t, err)
}

func TestProtocolService_Create_DuplicateIDWins(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)

	input := validCreateInput(1)
	input.ID = uuid.NewString()

	first := mustCreate(t, svc, input)

	again := input
	again.Cause = "resubmitted from device"
	result, err := svc.Create(context.Background(), driverActor, again)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, first.Cause, result.Protocol.Cause)
}

func TestProtocolService_Create_StagesOfflineOnTransientFailure(t *testing.T) {
	repo := newFakeProtocolRepo()
	queue := offline.NewMemoryQueue()
	svc := newTestService(repo, queue)

	repo.failNext = util.NewTransientIO(context.DeadlineExceeded)
	result, err := svc.Create(context.Background(), driverActor, validCreateInput(1))
	require.NoError(t, err)
	assert.True(t, result.Queued)

	pending, err := queue.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestProtocolService_Create_BackOfficeFailureIsNotQueued(t *testing.T) {
	repo := newFakeProtocolRepo()
	queue := offline.NewMemoryQueue()
	svc := newTestService(repo, queue)

	repo.failNext = util.NewTransientIO(context.DeadlineExceeded)
	_, err := svc.Create(context.Background(), adminActor, validCreateInput(1))
	require.Error(t, err)

	pending, _ := queue.Len(context.Background())
	assert.Zero(t, pending)
}

func TestProtocolService_LaunchRequiresValidation(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	protocol := mustCreate(t, svc, validCreateInput(1))

	_, err := svc.SetLaunched(context.Background(), dispatcherActor, protocol.ID, true)
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "PRECONDITION_FAILED"))

	stored, err := repo.GetByID(context.Background(), protocol.ID)
	require.NoError(t, err)
	assert.False(t, stored.Launched)
	assert.Equal(t, domain.ProtocolStatusOpen, stored.Status)
	assert.Len(t, stored.AuditTrail, 1, "rejected command must not add an audit entry")
}

func TestProtocolService_ValidateThenLaunch(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	validated, err := svc.SetValidated(ctx, validatorActor, protocol.ID, true)
	require.NoError(t, err)
	assert.True(t, validated.Validated)
	assert.Equal(t, domain.ProtocolStatusOpen, validated.Status)

	launched, err := svc.SetLaunched(ctx, dispatcherActor, protocol.ID, true)
	require.NoError(t, err)
	assert.True(t, launched.Launched)
	assert.Equal(t, domain.ProtocolStatusInProgress, launched.Status)

	actions := auditActions(launched.AuditTrail)
	assert.Equal(t, []domain.AuditAction{domain.ActionCreated, domain.ActionValidated, domain.ActionLaunched}, actions)
}

func TestProtocolService_GateSameValueIsNoOp(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))

	result, err := svc.SetValidated(context.Background(), validatorActor, protocol.ID, false)
	require.NoError(t, err)
	assert.Len(t, result.AuditTrail, 1, "no-op toggle must not add an audit entry")
}

func TestProtocolService_RevokeValidationDemotesButKeepsLaunch(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	_, err := svc.SetValidated(ctx, validatorActor, protocol.ID, true)
	require.NoError(t, err)
	_, err = svc.SetLaunched(ctx, dispatcherActor, protocol.ID, true)
	require.NoError(t, err)

	revoked, err := svc.SetValidated(ctx, validatorActor, protocol.ID, false)
	require.NoError(t, err)
	assert.False(t, revoked.Validated)
	assert.True(t, revoked.Launched, "launch flag survives validation revoke")
	assert.Equal(t, domain.ProtocolStatusOpen, revoked.Status)
	assert.Equal(t, domain.ActionValidationRevoked, revoked.AuditTrail[len(revoked.AuditTrail)-1].Action)
}

func TestProtocolService_GateRoleChecks(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	_, err := svc.SetValidated(ctx, driverActor, protocol.ID, true)
	assert.True(t, util.IsCode(err, "FORBIDDEN"))

	_, err = svc.SetLaunched(ctx, validatorActor, protocol.ID, true)
	assert.True(t, util.IsCode(err, "FORBIDDEN"))

	_, err = svc.SetValidated(ctx, adminActor, protocol.ID, true)
	assert.NoError(t, err, "admin holds every capability")
}

func TestProtocolService_PartialThenFullDelivery(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(3))
	ctx := context.Background()

	partial, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0, 2}, closureEvidence(), "first stop")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusInProgress, partial.Status)
	assert.Equal(t, 2, partial.DeliveredCount())
	assert.Nil(t, partial.ClosedAt)
	assert.Nil(t, partial.ClosureEvidence)
	assert.Equal(t, domain.ActionPartialDelivery, partial.AuditTrail[len(partial.AuditTrail)-1].Action)
	require.NotNil(t, partial.LineItems[0].DeliveredAt)
	assert.Equal(t, driverActor.ID, partial.LineItems[0].DeliveredByDriverID)

	closed, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{1}, closureEvidence(), "final stop")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ClosureEvidence)
	assert.Equal(t, driverActor.ID, closed.ClosureEvidence.ClosedByID)
	assert.Equal(t, domain.ActionClosed, closed.AuditTrail[len(closed.AuditTrail)-1].Action)
}

func TestProtocolService_DeliverRequiresEvidence(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))

	_, err := svc.DeliverItems(context.Background(), driverActor, protocol.ID, []int{0}, ClosureEvidenceInput{}, "")
	require.Error(t, err)
	require.True(t, util.IsCode(err, "PRECONDITION_REQUIRED"))
	details := util.ToDomainError(err).Details
	assert.Contains(t, details, "signed_receipt")
	assert.Contains(t, details, "goods_photo")
}

func TestProtocolService_DeliverAlreadyDeliveredFails(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(2))
	ctx := context.Background()

	_, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0}, closureEvidence(), "")
	require.NoError(t, err)

	_, err = svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0}, closureEvidence(), "")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "PRECONDITION_FAILED"))
}

func TestProtocolService_DeliverIndexOutOfRange(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))

	_, err := svc.DeliverItems(context.Background(), driverActor, protocol.ID, []int{5}, closureEvidence(), "")
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "VALIDATION_FAILED"))
}

func TestProtocolService_DeliverRemainingClosesProtocol(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(3))
	ctx := context.Background()

	_, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{1}, closureEvidence(), "")
	require.NoError(t, err)

	closed, err := svc.DeliverRemaining(ctx, driverActor, protocol.ID, closureEvidence(), "rest of the load")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusClosed, closed.Status)
	assert.True(t, closed.FullyDelivered())
}

func TestProtocolService_CloseStagesOfflineOnTransientFailure(t *testing.T) {
	repo := newFakeProtocolRepo()
	queue := offline.NewMemoryQueue()
	svc := newTestService(repo, queue)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	repo.failNext = util.NewTransientIO(context.DeadlineExceeded)
	closed, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0}, closureEvidence(), "no signal at the site")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusClosed, closed.Status)

	pending, _ := queue.Len(ctx)
	require.Equal(t, 1, pending)

	// the store copy is still open until the queue drains
	stored, err := repo.GetByID(ctx, protocol.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusOpen, stored.Status)

	result, err := queue.Drain(ctx, svc.SubmitQueued, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Submitted)

	stored, err = repo.GetByID(ctx, protocol.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusClosed, stored.Status)
	assert.Equal(t, domain.ActionClosed, stored.AuditTrail[len(stored.AuditTrail)-1].Action)
}

func TestProtocolService_Reopen(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	_, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0}, closureEvidence(), "")
	require.NoError(t, err)

	reopened, err := svc.Reopen(ctx, validatorActor, protocol.ID, "customer disputed the receipt")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
	assert.True(t, reopened.IsReopened())
	last := reopened.AuditTrail[len(reopened.AuditTrail)-1]
	assert.Equal(t, domain.ActionReopened, last.Action)
	assert.Equal(t, "customer disputed the receipt", last.Note)
}

func TestProtocolService_ReopenForceClosedGoesInProgress(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(2))
	ctx := context.Background()

	_, err := svc.ForceClose(ctx, adminActor, protocol.ID, "stale record cleanup")
	require.NoError(t, err)

	reopened, err := svc.Reopen(ctx, adminActor, protocol.ID, "cleanup was premature")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusInProgress, reopened.Status,
		"undelivered items put a reopened protocol back in progress")
}

func TestProtocolService_ReopenGuards(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	_, err := svc.Reopen(ctx, validatorActor, protocol.ID, "nope")
	assert.True(t, util.IsCode(err, "PRECONDITION_FAILED"), "only closed protocols reopen")

	_, err = svc.Reopen(ctx, driverActor, protocol.ID, "nope")
	assert.True(t, util.IsCode(err, "FORBIDDEN"))
}

func TestProtocolService_ForceClose(t *testing.T) {
	svc := newTestService(newFakeProtocolRepo(), nil)
	protocol := mustCreate(t, svc, validCreateInput(2))
	ctx := context.Background()

	_, err := svc.ForceClose(ctx, validatorActor, protocol.ID, "")
	assert.True(t, util.IsCode(err, "FORBIDDEN"))

	closed, err := svc.ForceClose(ctx, adminActor, protocol.ID, "driver left the company")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.False(t, closed.FullyDelivered(), "force close does not stamp line items")
	assert.Equal(t, domain.ActionForceClosed, closed.AuditTrail[len(closed.AuditTrail)-1].Action)
}

func TestProtocolService_Hide(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	hidden, err := svc.Hide(ctx, adminActor, protocol.ID)
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)

	visible, err := svc.List(ctx, repository.ProtocolFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := svc.List(ctx, repository.ProtocolFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Hide(ctx, adminActor, protocol.ID)
	assert.True(t, util.IsCode(err, "PRECONDITION_FAILED"))
}

func TestProtocolService_ConcurrentModification(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	// a competing writer bumps the stored version
	repo.mu.Lock()
	repo.records[protocol.ID].Version++
	repo.mu.Unlock()

	_, err := svc.SetValidated(ctx, validatorActor, protocol.ID, true)
	require.Error(t, err)
	assert.True(t, util.IsCode(err, "CONCURRENT_MODIFICATION"))
}

func TestProtocolService_SubmitQueuedCreateIsIdempotent(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	protocol := mustCreate(t, svc, validCreateInput(1))
	env := offline.Envelope{ID: protocol.ID, Op: offline.OpCreate, Protocol: *protocol}

	require.NoError(t, svc.SubmitQueued(ctx, env))
	require.NoError(t, svc.SubmitQueued(ctx, env))

	all, err := svc.List(ctx, repository.ProtocolFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProtocolService_ReplayClosureNoOpWhenAlreadyClosed(t *testing.T) {
	repo := newFakeProtocolRepo()
	svc := newTestService(repo, nil)
	protocol := mustCreate(t, svc, validCreateInput(1))
	ctx := context.Background()

	closed, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0}, closureEvidence(), "online close")
	require.NoError(t, err)

	stale := closed.Clone()
	stale.ClosureEvidence.Message = "stale offline close"
	env := offline.Envelope{ID: protocol.ID, Op: offline.OpClose, Protocol: *stale}
	require.NoError(t, svc.SubmitQueued(ctx, env))

	stored, err := repo.GetByID(ctx, protocol.ID)
	require.NoError(t, err)
	assert.Equal(t, "online close", stored.ClosureEvidence.Message)
	assert.Len(t, stored.AuditTrail, 2, "replay must not append another audit entry")
}

func TestProtocolService_DeliveryEventSelection(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	var published []events.Event
	for _, eventType := range []events.EventType{events.EventItemsDelivered, events.EventProtocolClosed} {
		dispatcher.Subscribe(eventType, func(_ context.Context, event events.Event) error {
			published = append(published, event)
			return nil
		})
	}

	repo := newFakeProtocolRepo()
	svc := NewProtocolService(ProtocolDependencies{
		ProtocolRepo: repo,
		Dispatcher:   dispatcher,
		Now:          func() time.Time { return time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC) },
	})
	protocol := mustCreate(t, svc, validCreateInput(2))
	ctx := context.Background()

	_, err := svc.DeliverItems(ctx, driverActor, protocol.ID, []int{0}, closureEvidence(), "first stop")
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, events.EventItemsDelivered, published[0].Type)
	payload, ok := published[0].Payload.(events.ItemsDeliveredPayload)
	require.True(t, ok)
	assert.Equal(t, []int{0}, payload.Indices)
	assert.Equal(t, 1, payload.DeliveredCount)
	assert.Equal(t, 2, payload.TotalCount)

	_, err = svc.DeliverItems(ctx, driverActor, protocol.ID, []int{1}, closureEvidence(), "final stop")
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, events.EventProtocolClosed, published[1].Type)
	closedPayload, ok := published[1].Payload.(events.ProtocolClosedPayload)
	require.True(t, ok)
	assert.Equal(t, protocol.Number, closedPayload.Number)
	assert.False(t, closedPayload.Forced)
}

func auditActions(trail []domain.AuditEntry) []domain.AuditAction {
	actions := make([]domain.AuditAction, 0, len(trail))
	for _, entry := range trail {
		actions = append(actions, entry.Action)
	}
	return actions
}

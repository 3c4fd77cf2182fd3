package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"opsuite/inspection-service/internal/models"
	"opsuite/pkg/apperr"
	"opsuite/pkg/authclient"
	"opsuite/pkg/cache"
	"opsuite/pkg/listing"
	"opsuite/pkg/notify"
	"opsuite/pkg/sanitize"
	"opsuite/pkg/storage"
	"opsuite/pkg/validator"
)

const (
	statsTTL        = 10 * time.Minute
	documentURLTTL  = 15 * time.Minute
	systemActor     = "finance-service"
	systemRole      = "system"
	documentsPrefix = "inspections"
)

type Repository interface {
	Create(ctx context.Context, req *models.InspectionRequest) error
	Update(ctx context.Context, req *models.InspectionRequest) error
	Delete(ctx context.Context, tenantID string, id primitive.ObjectID) error
	FindByID(ctx context.Context, tenantID string, id primitive.ObjectID) (*models.InspectionRequest, error)
	List(ctx context.Context, tenantID string) ([]models.InspectionRequest, error)
	ListByClient(ctx context.Context, tenantID, clientID string) ([]models.InspectionRequest, error)
	ScheduledBetween(ctx context.Context, from, to time.Time) ([]models.InspectionRequest, error)
	MarkReminded(ctx context.Context, tenantID string, id primitive.ObjectID, slot time.Time) error
	CountByStatus(ctx context.Context, tenantID string) (map[models.Status]int, error)
	TenantIDs(ctx context.Context) ([]string, error)
}

type InspectionService struct {
	repo   Repository
	store  storage.Store
	cache  cache.Cache
	notify notify.Sender
	events notify.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewInspectionService(repo Repository, store storage.Store, c cache.Cache, sender notify.Sender,
	events notify.Publisher, log *zap.Logger) *InspectionService {
	return &InspectionService{
		repo:   repo,
		store:  store,
		cache:  c,
		notify: sender,
		events: events,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var listSpec = listing.Spec[models.InspectionRequest]{
	SearchFields: func(r models.InspectionRequest) []string {
		return []string{r.ReferenceNo, r.Address, r.City, r.PropertyType, r.InspectorID}
	},
	Status: func(r models.InspectionRequest) string { return string(r.Status) },
	Sorters: map[string]func(a, b models.InspectionRequest) int{
		"created_at":   listing.ByTime(func(r models.InspectionRequest) time.Time { return r.CreatedAt }),
		"updated_at":   listing.ByTime(func(r models.InspectionRequest) time.Time { return r.UpdatedAt }),
		"reference_no": listing.ByString(func(r models.InspectionRequest) string { return r.ReferenceNo }),
		"status":       listing.ByString(func(r models.InspectionRequest) string { return string(r.Status) }),
		"city":         listing.ByString(func(r models.InspectionRequest) string { return r.City }),
		"total_rooms":  listing.ByInt(func(r models.InspectionRequest) int { return r.TotalRooms }),
		"completion":   listing.ByInt(func(r models.InspectionRequest) int { return r.CompletionPercentage }),
		"preferred_date": listing.ByTime(func(r models.InspectionRequest) time.Time {
			if r.PreferredDate == nil {
				return time.Time{}
			}
			return *r.PreferredDate
		}),
	},
	DefaultSort: "created_at",
}

func statsKey(tenantID string) string {
	return "inspection_stats:" + tenantID
}

func (s *InspectionService) referenceNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "INS-" + s.now().Format("20060102") + "-" + suffix
}

func validateInput(in *models.RequestInput) error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if in.DistanceKm.IsNegative() {
		return fmt.Errorf("%w: distance_km must not be negative", apperr.ErrValidation)
	}
	in.Notes = sanitize.Text(in.Notes)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	for i := range in.Floors {
		for j := range in.Floors[i].Rooms {
			in.Floors[i].Rooms[j].Notes = sanitize.Text(in.Floors[i].Rooms[j].Notes)
		}
	}
	return nil
}

// load fetches a request the actor may see. Clients only see their own.
func (s *InspectionService) load(ctx context.Context, actor authclient.Identity, id string) (*models.InspectionRequest, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.ErrInvalidID
	}
	req, err := s.repo.FindByID(ctx, actor.TenantID, oid)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff() && req.ClientID != actor.UserID {
		return nil, apperr.ErrNotFound
	}
	return req, nil
}

func (s *InspectionService) save(ctx context.Context, req *models.InspectionRequest) error {
	req.Recompute()
	if err := s.repo.Update(ctx, req); err != nil {
		return err
	}
	s.invalidateStats(ctx, req.TenantID)
	return nil
}

func (s *InspectionService) invalidateStats(ctx context.Context, tenantID string) {
	if err := s.cache.Delete(ctx, statsKey(tenantID)); err != nil {
		s.log.Warn("failed to invalidate stats cache", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

// Create stores a new draft owned by the calling client.
func (s *InspectionService) Create(ctx context.Context, actor authclient.Identity, in models.RequestInput) (*models.InspectionRequest, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	req := &models.InspectionRequest{
		TenantID:    actor.TenantID,
		ClientID:    actor.UserID,
		ReferenceNo: s.referenceNo(),
		Status:      models.StatusDraft,
	}
	req.Apply(in)
	req.Transition(models.StatusDraft, actor.UserID, actor.Role, "created", s.now())
	req.Recompute()

	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, req.TenantID)
	return req, nil
}

// Update edits the request. Owners may edit drafts, staff may edit until the
// inspection has started.
func (s *InspectionService) Update(ctx context.Context, actor authclient.Identity, id string, in models.RequestInput) (*models.InspectionRequest, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsStaff():
		if !req.Status.AtMost(models.StatusScheduled) {
			return nil, fmt.Errorf("%w: request in status %s can no longer be edited", apperr.ErrConflict, req.Status)
		}
	case req.Status != models.StatusDraft:
		return nil, fmt.Errorf("%w: only drafts can be edited", apperr.ErrConflict)
	}

	req.Apply(in)
	if err := s.save(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *InspectionService) Delete(ctx context.Context, actor authclient.Identity, id string) error {
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return err
	}
	if req.ClientID != actor.UserID {
		return fmt.Errorf("%w: only the owner can delete a draft", apperr.ErrForbidden)
	}
	if req.Status != models.StatusDraft {
		return fmt.Errorf("%w: only drafts can be deleted", apperr.ErrConflict)
	}
	if err := s.repo.Delete(ctx, req.TenantID, req.ID); err != nil {
		return err
	}
	for _, d := range req.Documents {
		if err := s.store.Remove(ctx, d.ObjectKey); err != nil {
			s.log.Warn("failed to remove document", zap.String("key", d.ObjectKey), zap.Error(err))
		}
	}
	s.invalidateStats(ctx, req.TenantID)
	return nil
}

func (s *InspectionService) Get(ctx context.Context, actor authclient.Identity, id string) (*models.InspectionRequest, error) {
	return s.load(ctx, actor, id)
}

func (s *InspectionService) ListMine(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.InspectionRequest], error) {
	items, err := s.repo.ListByClient(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return listing.Page[models.InspectionRequest]{}, err
	}
	return listing.Apply(items, q, listSpec), nil
}

// List returns the tenant's requests. Inspectors only see their assignments.
func (s *InspectionService) List(ctx context.Context, actor authclient.Identity, q listing.Query) (listing.Page[models.InspectionRequest], error) {
	items, err := s.repo.List(ctx, actor.TenantID)
	if err != nil {
		return listing.Page[models.InspectionRequest]{}, err
	}
	if actor.Role == authclient.RoleInspector {
		mine := items[:0]
		for _, it := range items {
			if it.InspectorID == actor.UserID {
				mine = append(mine, it)
			}
		}
		items = mine
	}
	return listing.Apply(items, q, listSpec), nil
}

// Submit sends a complete draft to staff.
func (s *InspectionService) Submit(ctx context.Context, actor authclient.Identity, id string) (*models.InspectionRequest, error) {
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.ClientID != actor.UserID {
		return nil, fmt.Errorf("%w: only the owner can submit", apperr.ErrForbidden)
	}
	if err := s.transition(ctx, req, models.StatusPending, actor, "submitted"); err != nil {
		return nil, err
	}

	s.publish(ctx, notify.Event{
		TenantID:  req.TenantID,
		Role:      authclient.RoleAdmin,
		EventType: "inspection_submitted",
		Title:     "New inspection request",
		Message:   fmt.Sprintf("Inspection request %s was submitted.", req.ReferenceNo),
		ExtraData: map[string]string{"request_id": req.ID.Hex()},
	})
	return req, nil
}

// ChangeStatus applies a manual staff transition. Inspectors may only start
// and complete their own inspections.
func (s *InspectionService) ChangeStatus(ctx context.Context, actor authclient.Identity, id string, to models.Status, note string) (*models.InspectionRequest, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, to)
	}
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == authclient.RoleInspector {
		if req.InspectorID != actor.UserID || (to != models.StatusInProgress && to != models.StatusCompleted) {
			return nil, fmt.Errorf("%w: inspectors may only start or complete their own inspections", apperr.ErrForbidden)
		}
	}
	if to == models.StatusCancelled {
		return s.cancel(ctx, req, actor, note)
	}
	if err := s.transition(ctx, req, to, actor, sanitize.Text(note)); err != nil {
		return nil, err
	}
	s.notifyClient(ctx, req, "inspection_status_changed", "Inspection request updated",
		fmt.Sprintf("Your inspection request %s is now %s.", req.ReferenceNo, humanStatus(req.Status)))
	return req, nil
}

func (s *InspectionService) Assign(ctx context.Context, actor authclient.Identity, id, inspectorID string) (*models.InspectionRequest, error) {
	if strings.TrimSpace(inspectorID) == "" {
		return nil, fmt.Errorf("%w: inspector_id is required", apperr.ErrValidation)
	}
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	req.InspectorID = inspectorID
	if err := s.transition(ctx, req, models.StatusAssigned, actor, "inspector assigned"); err != nil {
		return nil, err
	}

	s.send(ctx, notify.Request{
		TenantID:     req.TenantID,
		UserID:       inspectorID,
		Role:         authclient.RoleInspector,
		Title:        "New inspection assigned",
		Message:      fmt.Sprintf("You were assigned inspection %s at %s.", req.ReferenceNo, req.Address),
		Type:         "inspection_assigned",
		DeliveryType: notify.DeliveryPush,
		Metadata:     map[string]string{"request_id": req.ID.Hex()},
	})
	s.notifyClient(ctx, req, "inspection_assigned", "Inspector assigned",
		fmt.Sprintf("An inspector was assigned to request %s.", req.ReferenceNo))
	return req, nil
}

func (s *InspectionService) Schedule(ctx context.Context, actor authclient.Identity, id string, at time.Time) (*models.InspectionRequest, error) {
	if at.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_at is required", apperr.ErrValidation)
	}
	if !at.After(s.now()) {
		return nil, fmt.Errorf("%w: scheduled_at must be in the future", apperr.ErrValidation)
	}
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == authclient.RoleInspector && req.InspectorID != actor.UserID {
		return nil, fmt.Errorf("%w: not your inspection", apperr.ErrForbidden)
	}
	at = at.UTC()
	req.ScheduledAt = &at
	if err := s.transition(ctx, req, models.StatusScheduled, actor, "scheduled for "+at.Format(time.RFC3339)); err != nil {
		return nil, err
	}
	s.notifyClient(ctx, req, "inspection_scheduled", "Inspection scheduled",
		fmt.Sprintf("Inspection %s is scheduled for %s.", req.ReferenceNo, at.Format("2006-01-02 15:04")))
	return req, nil
}

// Cancel moves a non-terminal request to cancelled. Clients may only cancel
// before payment is verified.
func (s *InspectionService) Cancel(ctx context.Context, actor authclient.Identity, id, note string) (*models.InspectionRequest, error) {
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, req, actor, note)
}

func (s *InspectionService) cancel(ctx context.Context, req *models.InspectionRequest, actor authclient.Identity, note string) (*models.InspectionRequest, error) {
	if actor.Role == authclient.RoleInspector {
		return nil, fmt.Errorf("%w: inspectors cannot cancel requests", apperr.ErrForbidden)
	}
	if !actor.IsStaff() {
		switch req.Status {
		case models.StatusDraft, models.StatusPending, models.StatusPaymentPending:
		default:
			return nil, fmt.Errorf("%w: request can no longer be cancelled by the client", apperr.ErrForbidden)
		}
	}
	if err := s.transition(ctx, req, models.StatusCancelled, actor, sanitize.Text(note)); err != nil {
		return nil, err
	}
	if actor.UserID != req.ClientID {
		s.notifyClient(ctx, req, "inspection_cancelled", "Inspection cancelled",
			fmt.Sprintf("Inspection request %s was cancelled.", req.ReferenceNo))
	}
	if req.InspectorID != "" {
		s.send(ctx, notify.Request{
			TenantID: req.TenantID,
			UserID:   req.InspectorID,
			Role:     authclient.RoleInspector,
			Title:    "Inspection cancelled",
			Message:  fmt.Sprintf("Inspection %s was cancelled.", req.ReferenceNo),
			Type:     "inspection_cancelled",
		})
	}
	return req, nil
}

// transition checks the edge and its preconditions, records it and saves.
func (s *InspectionService) transition(ctx context.Context, req *models.InspectionRequest, to models.Status, actor authclient.Identity, note string) error {
	if !models.CanTransition(req.Status, to) {
		return fmt.Errorf("%w: cannot move from %s to %s", apperr.ErrInvalidTransition, req.Status, to)
	}
	req.Recompute()
	switch to {
	case models.StatusPending:
		if req.CompletionPercentage < 100 {
			return fmt.Errorf("%w: request is %d%% complete", apperr.ErrValidation, req.CompletionPercentage)
		}
	case models.StatusAssigned:
		if req.InspectorID == "" {
			return fmt.Errorf("%w: assign an inspector first", apperr.ErrValidation)
		}
	case models.StatusScheduled:
		if req.ScheduledAt == nil {
			return fmt.Errorf("%w: set scheduled_at first", apperr.ErrValidation)
		}
	}
	req.Transition(to, actor.UserID, actor.Role, note, s.now())
	return s.save(ctx, req)
}

// HandlePaymentStatus applies finance-service's decision on an inspection
// fee payment. Repeated verified callbacks are no-ops.
func (s *InspectionService) HandlePaymentStatus(ctx context.Context, upd models.PaymentUpdate) (*models.InspectionRequest, error) {
	if err := validator.Struct(upd); err != nil {
		return nil, err
	}
	system := authclient.Identity{UserID: systemActor, TenantID: upd.TenantID, Role: systemRole}
	req, err := s.load(ctx, system, upd.RequestID)
	if err != nil {
		return nil, err
	}

	note := strings.TrimSpace("payment " + upd.PaymentID + " " + upd.Status)
	if upd.Note != "" {
		note += ": " + sanitize.Text(upd.Note)
	}

	switch upd.Status {
	case "verified":
		if req.Status == models.StatusPaymentVerified {
			return req, nil
		}
		if err := s.transition(ctx, req, models.StatusPaymentVerified, system, note); err != nil {
			return nil, err
		}
		s.notifyClient(ctx, req, "payment_verified", "Payment verified",
			fmt.Sprintf("Payment for inspection %s was verified.", req.ReferenceNo))
	case "rejected":
		req.Annotate(system.UserID, system.Role, note, s.now())
		if err := s.save(ctx, req); err != nil {
			return nil, err
		}
		s.notifyClient(ctx, req, "payment_rejected", "Payment rejected",
			fmt.Sprintf("Payment for inspection %s was rejected. Please contact us.", req.ReferenceNo))
	}
	return req, nil
}

// AddDocument uploads a file and attaches it to a non-terminal request.
func (s *InspectionService) AddDocument(ctx context.Context, actor authclient.Identity, id, filename, contentType string, r io.Reader, size int64) (*models.Document, error) {
	if err := storage.ValidateUpload(filename, contentType, size); err != nil {
		return nil, err
	}
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, fmt.Errorf("%w: request is %s", apperr.ErrConflict, req.Status)
	}

	obj, err := s.store.Put(ctx, documentsPrefix+"/"+req.TenantID+"/"+req.ID.Hex(), filename, contentType, r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	doc := models.Document{
		ID:          uuid.NewString(),
		FileName:    obj.FileName,
		ObjectKey:   obj.Key,
		URL:         obj.URL,
		ContentType: obj.ContentType,
		Size:        obj.Size,
		UploadedBy:  actor.UserID,
		UploadedAt:  s.now(),
	}
	req.Documents = append(req.Documents, doc)
	if err := s.save(ctx, req); err != nil {
		_ = s.store.Remove(ctx, obj.Key)
		return nil, err
	}
	return &doc, nil
}

func (s *InspectionService) DocumentURL(ctx context.Context, actor authclient.Identity, id, docID string) (string, error) {
	req, err := s.load(ctx, actor, id)
	if err != nil {
		return "", err
	}
	doc, ok := req.Document(docID)
	if !ok {
		return "", fmt.Errorf("%w: document not found", apperr.ErrNotFound)
	}
	return s.store.PresignedURL(ctx, doc.ObjectKey, documentURLTTL)
}

// Stats returns request counts per status, served from cache when possible.
func (s *InspectionService) Stats(ctx context.Context, tenantID string) (map[models.Status]int, error) {
	var cached map[models.Status]int
	if err := s.cache.Get(ctx, statsKey(tenantID), &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("stats cache read failed", zap.Error(err))
	}
	return s.RefreshStats(ctx, tenantID)
}

type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int           `json:"count"`
}

// OrderedCounts lists counts in lifecycle order.
func OrderedCounts(counts map[models.Status]int) []StatusCount {
	out := make([]StatusCount, 0, len(models.Statuses))
	for _, st := range models.Statuses {
		out = append(out, StatusCount{Status: st, Count: counts[st]})
	}
	return out
}

func (s *InspectionService) RefreshStats(ctx context.Context, tenantID string) (map[models.Status]int, error) {
	counts, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, st := range models.Statuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	if err := s.cache.Set(ctx, statsKey(tenantID), counts, statsTTL); err != nil {
		s.log.Warn("failed to cache stats", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	return counts, nil
}

func (s *InspectionService) notifyClient(ctx context.Context, req *models.InspectionRequest, typ, title, msg string) {
	s.send(ctx, notify.Request{
		TenantID: req.TenantID,
		UserID:   req.ClientID,
		Role:     authclient.RoleClient,
		Title:    title,
		Message:  msg,
		Type:     typ,
		Metadata: map[string]string{"request_id": req.ID.Hex(), "reference_no": req.ReferenceNo},
	})
}

func (s *InspectionService) send(ctx context.Context, n notify.Request) {
	if err := s.notify.Send(ctx, n); err != nil {
		s.log.Warn("notification failed", zap.String("type", n.Type), zap.Error(err))
	}
}

func (s *InspectionService) publish(ctx context.Context, ev notify.Event) {
	if err := s.events.Publish(ctx, notify.InspectionEventsChannel, ev); err != nil {
		s.log.Warn("event publish failed", zap.String("event_type", ev.EventType), zap.Error(err))
	}
}

func humanStatus(s models.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"opsuite/pkg/money"
)

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPending         Status = "pending"
	StatusPaymentPending  Status = "payment_pending"
	StatusPaymentVerified Status = "payment_verified"
	StatusAssigned        Status = "assigned"
	StatusScheduled       Status = "scheduled"
	StatusInProgress      Status = "in_progress"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusPending,
	StatusPaymentPending,
	StatusPaymentVerified,
	StatusAssigned,
	StatusScheduled,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

var nextStatus = map[Status]Status{
	StatusDraft:           StatusPending,
	StatusPending:         StatusPaymentPending,
	StatusPaymentPending:  StatusPaymentVerified,
	StatusPaymentVerified: StatusAssigned,
	StatusAssigned:        StatusScheduled,
	StatusScheduled:       StatusInProgress,
	StatusInProgress:      StatusCompleted,
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from → to is a lifecycle edge.
func CanTransition(from, to Status) bool {
	if to == StatusCancelled {
		return from.Valid() && !from.Terminal()
	}
	next, ok := nextStatus[from]
	return ok && next == to
}

// rank orders statuses along the lifecycle. Cancelled ranks last.
func (s Status) rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return len(Statuses)
}

// AtMost reports whether s has not progressed past limit.
func (s Status) AtMost(limit Status) bool {
	return s != StatusCancelled && s.rank() <= limit.rank()
}

type Room struct {
	Name    string          `bson:"name" json:"name" validate:"required"`
	Type    string          `bson:"type" json:"type"`
	AreaSqm decimal.Decimal `bson:"area_sqm" json:"area_sqm"`
	Notes   string          `bson:"notes,omitempty" json:"notes,omitempty"`
}

type Floor struct {
	Level int    `bson:"level" json:"level"`
	Label string `bson:"label" json:"label"`
	Rooms []Room `bson:"rooms" json:"rooms" validate:"dive"`
}

// CompletionFlags are the four sections a client fills in before submitting.
type CompletionFlags struct {
	PropertyDetails bool `bson:"property_details" json:"property_details"`
	FloorPlan       bool `bson:"floor_plan" json:"floor_plan"`
	Documents       bool `bson:"documents" json:"documents"`
	Schedule        bool `bson:"schedule" json:"schedule"`
}

func (f CompletionFlags) values() []bool {
	return []bool{f.PropertyDetails, f.FloorPlan, f.Documents, f.Schedule}
}

type StatusChange struct {
	From      Status    `bson:"from" json:"from"`
	To        Status    `bson:"to" json:"to"`
	ChangedBy string    `bson:"changed_by" json:"changed_by"`
	Role      string    `bson:"role" json:"role"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
	At        time.Time `bson:"at" json:"at"`
}

type Document struct {
	ID          string    `bson:"id" json:"id"`
	FileName    string    `bson:"file_name" json:"file_name"`
	ObjectKey   string    `bson:"object_key" json:"object_key"`
	URL         string    `bson:"url" json:"url"`
	ContentType string    `bson:"content_type" json:"content_type"`
	Size        int64     `bson:"size" json:"size"`
	UploadedBy  string    `bson:"uploaded_by" json:"uploaded_by"`
	UploadedAt  time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

type InspectionRequest struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID             string             `bson:"tenant_id" json:"tenant_id"`
	ClientID             string             `bson:"client_id" json:"client_id"`
	ReferenceNo          string             `bson:"reference_no" json:"reference_no"`
	PropertyType         string             `bson:"property_type" json:"property_type"`
	Address              string             `bson:"address" json:"address"`
	City                 string             `bson:"city" json:"city"`
	DistanceKm           decimal.Decimal    `bson:"distance_km" json:"distance_km"`
	Floors               []Floor            `bson:"floors" json:"floors"`
	TotalRooms           int                `bson:"total_rooms" json:"total_rooms"`
	Notes                string             `bson:"notes,omitempty" json:"notes,omitempty"`
	PreferredDate        *time.Time         `bson:"preferred_date,omitempty" json:"preferred_date,omitempty"`
	ScheduledAt          *time.Time         `bson:"scheduled_at,omitempty" json:"scheduled_at,omitempty"`
	InspectorID          string             `bson:"inspector_id,omitempty" json:"inspector_id,omitempty"`
	RemindedFor          *time.Time         `bson:"reminded_for,omitempty" json:"-"`
	Documents            []Document         `bson:"documents" json:"documents"`
	Status               Status             `bson:"status" json:"status"`
	StatusHistory        []StatusChange     `bson:"status_history" json:"status_history"`
	Flags                CompletionFlags    `bson:"flags" json:"flags"`
	CompletionPercentage int                `bson:"completion_percentage" json:"completion_percentage"`
	EstimatedTravelCost  decimal.Decimal    `bson:"estimated_travel_cost" json:"estimated_travel_cost"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

// ReminderDue reports whether no reminder went out yet for the current
// ScheduledAt. Rescheduling re-arms it.
func (r *InspectionRequest) ReminderDue() bool {
	if r.ScheduledAt == nil {
		return false
	}
	return r.RemindedFor == nil || !r.RemindedFor.Equal(*r.ScheduledAt)
}

// Recompute refreshes every derived field. Call before each save.
func (r *InspectionRequest) Recompute() {
	rooms := 0
	for _, f := range r.Floors {
		rooms += len(f.Rooms)
	}
	r.TotalRooms = rooms
	r.Flags = CompletionFlags{
		PropertyDetails: r.Address != "" && r.PropertyType != "",
		FloorPlan:       rooms > 0,
		Documents:       len(r.Documents) > 0,
		Schedule:        r.PreferredDate != nil,
	}
	r.CompletionPercentage = CompletionPercentage(r.Flags.values()...)
	r.EstimatedTravelCost = TravelCost(r.DistanceKm)
	if r.Floors == nil {
		r.Floors = []Floor{}
	}
	if r.Documents == nil {
		r.Documents = []Document{}
	}
	if r.StatusHistory == nil {
		r.StatusHistory = []StatusChange{}
	}
}

// Transition moves the request to `to` and records the change. The caller
// checks that the edge is allowed.
func (r *InspectionRequest) Transition(to Status, by, role, note string, at time.Time) {
	r.StatusHistory = append(r.StatusHistory, StatusChange{
		From:      r.Status,
		To:        to,
		ChangedBy: by,
		Role:      role,
		Note:      note,
		At:        at,
	})
	r.Status = to
}

// Annotate records a history entry without changing status.
func (r *InspectionRequest) Annotate(by, role, note string, at time.Time) {
	r.Transition(r.Status, by, role, note, at)
}

func (r *InspectionRequest) Document(id string) (*Document, bool) {
	for i := range r.Documents {
		if r.Documents[i].ID == id {
			return &r.Documents[i], true
		}
	}
	return nil, false
}

var (
	freeDistanceKm = decimal.NewFromInt(50)
	extraKmRate    = decimal.NewFromInt(2)
)

// TravelCost charges 1 per km up to 50 km and 2 per km beyond that.
func TravelCost(distanceKm decimal.Decimal) decimal.Decimal {
	if distanceKm.LessThanOrEqual(freeDistanceKm) {
		return money.Round(distanceKm)
	}
	return money.Round(freeDistanceKm.Add(distanceKm.Sub(freeDistanceKm).Mul(extraKmRate)))
}

// CompletionPercentage is round(100*k/n) for k true flags out of n.
func CompletionPercentage(flags ...bool) int {
	if len(flags) == 0 {
		return 0
	}
	k := 0
	for _, f := range flags {
		if f {
			k++
		}
	}
	return int(math.Round(100 * float64(k) / float64(len(flags))))
}

// PaymentUpdate is posted by finance-service when an inspection fee payment
// is decided.
type PaymentUpdate struct {
	RequestID string `json:"request_id" validate:"required"`
	TenantID  string `json:"tenant_id" validate:"required"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status" validate:"required,oneof=verified rejected"`
	Note      string `json:"note"`
}

// RequestInput is the editable part of a request. Drafts may be incomplete.
type RequestInput struct {
	PropertyType  string          `json:"property_type" validate:"omitempty,oneof=residential commercial industrial mixed_use"`
	Address       string          `json:"address" validate:"max=300"`
	City          string          `json:"city" validate:"max=100"`
	DistanceKm    decimal.Decimal `json:"distance_km"`
	Floors        []Floor         `json:"floors" validate:"max=50,dive"`
	Notes         string          `json:"notes" validate:"max=2000"`
	PreferredDate *time.Time      `json:"preferred_date"`
}

func (r *InspectionRequest) Apply(in RequestInput) {
	r.PropertyType = in.PropertyType
	r.Address = in.Address
	r.City = in.City
	r.DistanceKm = in.DistanceKm
	r.Floors = in.Floors
	r.Notes = in.Notes
	r.PreferredDate = in.PreferredDate
}

package models

import (
	"fmt"

	"github.com/shopspring/decimal"

	"opsuite/pkg/apperr"
	"opsuite/pkg/money"
	"opsuite/pkg/validator"
)

type EstimationStatus string

const (
	EstimationDraft           EstimationStatus = "draft"
	EstimationPendingApproval EstimationStatus = "pending_approval"
	EstimationApproved        EstimationStatus = "approved"
	EstimationRejected        EstimationStatus = "rejected"
)

var estimationEdges = map[EstimationStatus][]EstimationStatus{
	EstimationDraft:           {EstimationPendingApproval},
	EstimationPendingApproval: {EstimationApproved, EstimationRejected},
	EstimationRejected:        {EstimationDraft},
}

func (s EstimationStatus) CanMoveTo(to EstimationStatus) bool {
	for _, next := range estimationEdges[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Estimation struct {
	Base                `bson:",inline"`
	InspectionRequestID string           `bson:"inspection_request_id,omitempty" json:"inspection_request_id,omitempty"`
	ProjectName         string           `bson:"project_name" json:"project_name"`
	Title               string           `bson:"title" json:"title"`
	Labor               []CostLine       `bson:"labor" json:"labor"`
	Material            []CostLine       `bson:"material" json:"material"`
	Service             []CostLine       `bson:"service" json:"service"`
	ContingencyPercent  decimal.Decimal  `bson:"contingency_percent" json:"contingency_percent"`
	Subtotal            decimal.Decimal  `bson:"subtotal" json:"subtotal"`
	Contingency         decimal.Decimal  `bson:"contingency" json:"contingency"`
	Total               decimal.Decimal  `bson:"total" json:"total"`
	Status              EstimationStatus `bson:"status" json:"status"`
	CreatedBy           string           `bson:"created_by" json:"created_by"`
	Review              *Review          `bson:"review,omitempty" json:"review,omitempty"`
}

// Recalculate prices every line and refreshes the totals.
func (e *Estimation) Recalculate() {
	e.Subtotal = money.Round(money.Sum(priceLines(e.Labor), priceLines(e.Material), priceLines(e.Service)))
	e.Contingency = money.Percent(e.Subtotal, e.ContingencyPercent)
	e.Total = e.Subtotal.Add(e.Contingency)
}

// Lines returns every line, contingency excluded, prefixed by its section.
func (e *Estimation) Lines() []CostLine {
	var out []CostLine
	for _, sec := range []struct {
		name  string
		lines []CostLine
	}{{"Labor", e.Labor}, {"Material", e.Material}, {"Service", e.Service}} {
		for _, l := range sec.lines {
			l.Description = sec.name + ": " + l.Description
			out = append(out, l)
		}
	}
	return out
}

type EstimationInput struct {
	InspectionRequestID string          `json:"inspection_request_id"`
	ProjectName         string          `json:"project_name" validate:"required,max=200"`
	Title               string          `json:"title" validate:"required,max=200"`
	Labor               []CostLine      `json:"labor" validate:"dive"`
	Material            []CostLine      `json:"material" validate:"dive"`
	Service             []CostLine      `json:"service" validate:"dive"`
	ContingencyPercent  decimal.Decimal `json:"contingency_percent"`
}

func (in EstimationInput) Validate() error {
	if err := validator.Struct(in); err != nil {
		return err
	}
	if len(in.Labor)+len(in.Material)+len(in.Service) == 0 {
		return fmt.Errorf("%w: at least one labor, material or service line is required", apperr.ErrValidation)
	}
	if err := checkLines("labor", in.Labor); err != nil {
		return err
	}
	if err := checkLines("material", in.Material); err != nil {
		return err
	}
	if err := checkLines("service", in.Service); err != nil {
		return err
	}
	return checkPercent("contingency_percent", in.ContingencyPercent)
}

func (e *Estimation) Apply(in EstimationInput) {
	e.InspectionRequestID = in.InspectionRequestID
	e.ProjectName = in.ProjectName
	e.Title = in.Title
	e.Labor = nonNil(in.Labor)
	e.Material = nonNil(in.Material)
	e.Service = nonNil(in.Service)
	e.ContingencyPercent = in.ContingencyPercent
	e.Recalculate()
}

func nonNil(lines []CostLine) []CostLine {
	if lines == nil {
		return []CostLine{}
	}
	return lines
}

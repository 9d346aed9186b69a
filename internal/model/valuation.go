package model

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/currency"
)

// ValuationRequest describes a property to be valued. Optional fields are
// pointers or nil slices so that "absent" is distinguishable from zero.
type ValuationRequest struct {
	Location     string   `json:"location" yaml:"location"`
	AreaSqFt     float64  `json:"areaSqFt" yaml:"areaSqFt"`
	PropertyType string   `json:"propertyType" yaml:"propertyType"`
	Bedrooms     *int     `json:"bedrooms,omitempty" yaml:"bedrooms,omitempty"`
	Bathrooms    *int     `json:"bathrooms,omitempty" yaml:"bathrooms,omitempty"`
	YearBuilt    *int     `json:"yearBuilt,omitempty" yaml:"yearBuilt,omitempty"`
	Amenities    []string `json:"amenities,omitempty" yaml:"amenities,omitempty"`
	Market       string   `json:"market" yaml:"market"`
	Currency     string   `json:"currency" yaml:"currency"`
}

// ErrInvalidRequest is the sentinel wrapped by every RequestError.
var ErrInvalidRequest = eris.New("invalid request")

// RequestError reports a caller-supplied request that cannot be sent upstream.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return "request: " + e.Field + ": " + e.Reason
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}

// Validate checks the required fields of the request.
func (r ValuationRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Location) == "":
		return &RequestError{Field: "location", Reason: "required"}
	case r.AreaSqFt <= 0:
		return &RequestError{Field: "areaSqFt", Reason: "must be positive"}
	case strings.TrimSpace(r.PropertyType) == "":
		return &RequestError{Field: "propertyType", Reason: "required"}
	case strings.TrimSpace(r.Market) == "":
		return &RequestError{Field: "market", Reason: "required"}
	case strings.TrimSpace(r.Currency) == "":
		return &RequestError{Field: "currency", Reason: "required"}
	}
	if r.Bedrooms != nil && *r.Bedrooms < 0 {
		return &RequestError{Field: "bedrooms", Reason: "must not be negative"}
	}
	if r.Bathrooms != nil && *r.Bathrooms < 0 {
		return &RequestError{Field: "bathrooms", Reason: "must not be negative"}
	}
	if _, err := currency.ParseISO(strings.ToUpper(r.Currency)); err != nil {
		return &RequestError{Field: "currency", Reason: "not an ISO-4217 code"}
	}
	return nil
}

// ValuationFactors weights the drivers behind an estimate. Weights are
// advisory and need not sum to one.
type ValuationFactors struct {
	Location  float64 `json:"location" yaml:"location"`
	Size      float64 `json:"size" yaml:"size"`
	Amenities float64 `json:"amenities" yaml:"amenities"`
	Market    float64 `json:"market" yaml:"market"`
	YearBuilt float64 `json:"yearBuilt" yaml:"yearBuilt"`
}

// Comparable is a nearby sale used to support an estimate.
type Comparable struct {
	Address    string  `json:"address" yaml:"address"`
	Price      float64 `json:"price" yaml:"price"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
	DistanceKm float64 `json:"distanceKm" yaml:"distanceKm"`
}

// ValuationResult is the structured answer for a ValuationRequest.
type ValuationResult struct {
	EstimatedValue float64          `json:"estimatedValue" yaml:"estimatedValue"`
	Confidence     float64          `json:"confidence" yaml:"confidence"`
	Factors        ValuationFactors `json:"factors" yaml:"factors"`
	Comparables    []Comparable     `json:"comparables" yaml:"comparables"`
	Summary        string           `json:"summary" yaml:"summary"`
	MarketInsights []string         `json:"marketInsights" yaml:"marketInsights"`
}

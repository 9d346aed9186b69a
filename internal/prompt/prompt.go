// Package prompt renders the system and user instructions sent to a model
// provider. Rendering is pure and deterministic.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sells-group/realty-ai/internal/model"
	"github.com/sells-group/realty-ai/internal/schema"
)

var printer = message.NewPrinter(language.English)

const valuationRole = `You are an experienced residential real estate appraiser. Estimate the market value of the property described by the user using recent comparable sales and current market conditions.`

const leadRole = `You are a real estate sales analyst. Score how likely the described lead is to convert into a transaction within the next six months.`

const outputRules = `Respond with a single JSON object and nothing else: no prose, no markdown fences. The object must conform to this JSON Schema:`

// Valuation renders the prompt pair for a property valuation.
func Valuation(req model.ValuationRequest) (system, user string) {
	var s strings.Builder
	s.WriteString(valuationRole + "\n\n")
	s.WriteString(outputRules + "\n")
	s.WriteString(schema.MustSource(schema.Valuation))
	s.WriteString("\nconfidence, every factors weight and every comparable similarity are between 0 and 1. ")
	s.WriteString("Include up to five comparables, ordered by similarity. ")
	s.WriteString("Express estimatedValue and comparable prices in the currency the user names.")

	var u strings.Builder
	u.WriteString("Estimate the value of this property.\n\n")
	u.WriteString("Location: " + req.Location + "\n")
	u.WriteString("Area: " + printer.Sprintf("%v", number.Decimal(req.AreaSqFt)) + " sq ft\n")
	u.WriteString("Property type: " + req.PropertyType + "\n")
	if req.Bedrooms != nil {
		u.WriteString(printer.Sprintf("Bedrooms: %d\n", *req.Bedrooms))
	}
	if req.Bathrooms != nil {
		u.WriteString(printer.Sprintf("Bathrooms: %d\n", *req.Bathrooms))
	}
	if req.YearBuilt != nil {
		// Years are not grouped.
		fmt.Fprintf(&u, "Year built: %d\n", *req.YearBuilt)
	}
	if len(req.Amenities) > 0 {
		u.WriteString("Amenities: " + strings.Join(req.Amenities, ", ") + "\n")
	}
	u.WriteString("Market: " + req.Market + "\n")
	u.WriteString("Currency: " + strings.ToUpper(req.Currency) + "\n")

	return s.String(), u.String()
}

// LeadScore renders the prompt pair for lead scoring. An empty request still
// yields a complete instruction.
func LeadScore(req model.LeadScoringRequest) (system, user string) {
	var s strings.Builder
	s.WriteString(leadRole + "\n\n")
	s.WriteString(outputRules + "\n")
	s.WriteString(schema.MustSource(schema.LeadScore))
	s.WriteString("\nscore is between 0 and 100. priority is high for scores of 70 and above, medium from 40, otherwise low. ")
	s.WriteString("factors maps each signal you weighed to its contribution between 0 and 1. ")
	s.WriteString("Give two to four concrete follow-up recommendations.")

	var u strings.Builder
	u.WriteString("Score this lead.\n\n")
	if req.IsEmpty() {
		u.WriteString("No details were captured for this lead. Score it against a typical inbound inquiry and recommend how to qualify it.\n")
		return s.String(), u.String()
	}
	if req.Budget != nil {
		u.WriteString("Budget: " + printer.Sprintf("%v", number.Decimal(*req.Budget, number.MaxFractionDigits(0))) + "\n")
	}
	if req.Timeline != "" {
		u.WriteString("Timeline: " + req.Timeline + "\n")
	}
	if req.PropertyType != "" {
		u.WriteString("Property type: " + req.PropertyType + "\n")
	}
	if req.Location != "" {
		u.WriteString("Location: " + req.Location + "\n")
	}
	if req.ContactMethod != "" {
		u.WriteString("Preferred contact: " + req.ContactMethod + "\n")
	}
	if req.Source != "" {
		u.WriteString("Lead source: " + req.Source + "\n")
	}
	return s.String(), u.String()
}

package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/now"
)

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// Rules are the configurable bounds of a booking form.
type Rules struct {
	MaxAdvanceDays        int
	OpenHour              int
	CloseHour             int
	MinAddressLength      int
	MaxInstructionsLength int
}

func DefaultRules() Rules {
	return Rules{
		MaxAdvanceDays:        models.DefaultMaxAdvanceDays,
		OpenHour:              models.DefaultOpenHour,
		CloseHour:             models.DefaultCloseHour,
		MinAddressLength:      models.DefaultMinAddressLength,
		MaxInstructionsLength: models.DefaultMaxInstructionsLength,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.MaxAdvanceDays <= 0 {
		r.MaxAdvanceDays = d.MaxAdvanceDays
	}
	if r.CloseHour <= 0 {
		r.OpenHour, r.CloseHour = d.OpenHour, d.CloseHour
	}
	if r.MinAddressLength <= 0 {
		r.MinAddressLength = d.MinAddressLength
	}
	if r.MaxInstructionsLength <= 0 {
		r.MaxInstructionsLength = d.MaxInstructionsLength
	}
	return r
}

// BookingForm is the raw customer input.
type BookingForm struct {
	ServiceID           string   `json:"service_id" validate:"required"`
	PackageID           string   `json:"package_id"`
	ServiceDate         string   `json:"service_date" validate:"required,datetime=2006-01-02"`
	ServiceTime         string   `json:"service_time" validate:"required,datetime=15:04"`
	CustomerAddress     string   `json:"customer_address" validate:"required"`
	CustomerPhone       string   `json:"customer_phone" validate:"required"`
	SpecialInstructions string   `json:"special_instructions"`
	TotalAmount         *float64 `json:"total_amount,omitempty" validate:"omitempty,gt=0"`
}

// BookingIntent is a form that passed validation, with normalized fields.
type BookingIntent struct {
	ServiceID           string
	Package             *models.Package
	ServiceDate         string
	ServiceTime         string
	CustomerAddress     string
	CustomerPhone       string
	SpecialInstructions string
	TotalAmount         *float64
}

type BookingValidator struct {
	rules    Rules
	validate *validator.Validate
}

func New(rules Rules) *BookingValidator {
	return &BookingValidator{rules: rules.withDefaults(), validate: newValidate()}
}

func (v *BookingValidator) Rules() Rules {
	return v.rules
}

// Validate checks every rule and reports all violations together.
// Exactly one of the results is non-nil.
func (v *BookingValidator) Validate(form BookingForm, packages []*models.Package, at time.Time) (*BookingIntent, *domain.ValidationError) {
	verr := domain.NewValidationError()

	if err := v.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.Add("form", err.Error())
			return nil, verr
		}
		for _, fe := range fieldErrs {
			verr.Add(fe.Field(), tagMessage(fe))
		}
	}

	intent := &BookingIntent{
		ServiceID:           strings.TrimSpace(form.ServiceID),
		ServiceDate:         strings.TrimSpace(form.ServiceDate),
		ServiceTime:         strings.TrimSpace(form.ServiceTime),
		CustomerAddress:     strings.TrimSpace(form.CustomerAddress),
		SpecialInstructions: strings.TrimSpace(form.SpecialInstructions),
		TotalAmount:         form.TotalAmount,
	}

	if _, failed := verr.Fields["service_date"]; !failed {
		if msg := v.checkDate(intent.ServiceDate, at); msg != "" {
			verr.Add("service_date", msg)
		}
	}
	if _, failed := verr.Fields["service_time"]; !failed {
		if msg := v.checkTime(intent.ServiceTime); msg != "" {
			verr.Add("service_time", msg)
		}
	}
	if _, failed := verr.Fields["customer_phone"]; !failed {
		phone, ok := NormalizePhone(form.CustomerPhone)
		if !ok {
			verr.Add("customer_phone", "must be a valid 10-digit mobile number starting with 6-9")
		}
		intent.CustomerPhone = phone
	}
	if _, failed := verr.Fields["customer_address"]; !failed {
		if utf8.RuneCountInString(intent.CustomerAddress) < v.rules.MinAddressLength {
			verr.Add("customer_address", fmt.Sprintf("must be at least %d characters", v.rules.MinAddressLength))
		}
	}
	if utf8.RuneCountInString(intent.SpecialInstructions) > v.rules.MaxInstructionsLength {
		verr.Add("special_instructions", fmt.Sprintf("must be at most %d characters", v.rules.MaxInstructionsLength))
	}

	pkg, msg := selectPackage(strings.TrimSpace(form.PackageID), packages)
	if msg != "" {
		verr.Add("package_id", msg)
	}
	intent.Package = pkg

	if verr.HasErrors() {
		return nil, verr
	}
	return intent, nil
}

func (v *BookingValidator) checkDate(raw string, at time.Time) string {
	date, err := time.ParseInLocation(models.DateLayout, raw, at.Location())
	if err != nil {
		return "must be in YYYY-MM-DD format"
	}
	today := now.With(at).BeginningOfDay()
	if date.Before(today) {
		return "must not be in the past"
	}
	if date.After(today.AddDate(0, 0, v.rules.MaxAdvanceDays)) {
		return fmt.Sprintf("must be within %d days from today", v.rules.MaxAdvanceDays)
	}
	return ""
}

func (v *BookingValidator) checkTime(raw string) string {
	t, err := time.Parse(models.TimeLayout, raw)
	if err != nil {
		return "must be in HH:MM format"
	}
	if t.Hour() < v.rules.OpenHour || t.Hour() >= v.rules.CloseHour {
		return fmt.Sprintf("must be between %02d:00 and %02d:00", v.rules.OpenHour, v.rules.CloseHour)
	}
	return ""
}

func selectPackage(id string, packages []*models.Package) (*models.Package, string) {
	if len(packages) == 0 {
		if id != "" {
			return nil, "service does not offer packages"
		}
		return nil, ""
	}
	if id == "" {
		return nil, "is required"
	}
	for _, p := range packages {
		if p.ID == id && p.IsActive {
			return p, ""
		}
	}
	return nil, "is not offered for this service"
}

// NormalizePhone strips formatting and the +91 or trunk 0 prefix and reports
// whether the rest is a valid mobile number.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}

	return digits, mobilePattern.MatchString(digits)
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		if fe.Param() == models.TimeLayout {
			return "must be in HH:MM format"
		}
		return "must be in YYYY-MM-DD format"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}

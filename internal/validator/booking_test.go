package validator

import (
	"strings"
	"testing"
	"time"

	"homeservices/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC)

func validForm() BookingForm {
	return BookingForm{
		ServiceID:       "svc-1",
		ServiceDate:     "2026-05-12",
		ServiceTime:     "10:30",
		CustomerAddress: "12 MG Road, Bengaluru",
		CustomerPhone:   "9876543210",
	}
}

func TestValidateAcceptsValidForm(t *testing.T) {
	v := New(DefaultRules())

	intent, verr := v.Validate(validForm(), nil, fixedNow)
	require.Nil(t, verr)
	require.NotNil(t, intent)
	assert.Equal(t, "9876543210", intent.CustomerPhone)
	assert.Equal(t, "2026-05-12", intent.ServiceDate)
	assert.Nil(t, intent.Package)
}

func TestValidateDateBounds(t *testing.T) {
	v := New(DefaultRules())

	tests := []struct {
		name string
		date string
		ok   bool
	}{
		{"today", "2026-05-10", true},
		{"yesterday", "2026-05-09", false},
		{"last allowed day", fixedNow.AddDate(0, 0, 90).Format(models.DateLayout), true},
		{"one past horizon", fixedNow.AddDate(0, 0, 91).Format(models.DateLayout), false},
		{"bad format", "10/05/2026", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			form.ServiceDate = tt.date
			_, verr := v.Validate(form, nil, fixedNow)
			if tt.ok {
				assert.Nil(t, verr)
			} else {
				require.NotNil(t, verr)
				assert.Contains(t, verr.Fields, "service_date")
			}
		})
	}
}

func TestValidateTimeWindow(t *testing.T) {
	v := New(DefaultRules())

	tests := map[string]bool{
		"08:59": false,
		"09:00": true,
		"13:15": true,
		"17:59": true,
		"18:00": false,
		"25:00": false,
	}

	for slot, ok := range tests {
		t.Run(slot, func(t *testing.T) {
			form := validForm()
			form.ServiceTime = slot
			_, verr := v.Validate(form, nil, fixedNow)
			if ok {
				assert.Nil(t, verr)
			} else {
				require.NotNil(t, verr)
				assert.Contains(t, verr.Fields, "service_time")
			}
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"98765 43210", "9876543210", true},
		{"+91 98765 43210", "9876543210", true},
		{"09876543210", "9876543210", true},
		{"5876543210", "5876543210", false},
		{"987654321", "987654321", false},
		{"(700) 000-0000", "7000000000", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAddressAndInstructions(t *testing.T) {
	v := New(DefaultRules())

	form := validForm()
	form.CustomerAddress = "  123456789  "
	_, verr := v.Validate(form, nil, fixedNow)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "customer_address")

	form.CustomerAddress = "1234567890"
	_, verr = v.Validate(form, nil, fixedNow)
	assert.Nil(t, verr)

	form.SpecialInstructions = strings.Repeat("a", 500)
	_, verr = v.Validate(form, nil, fixedNow)
	assert.Nil(t, verr)

	form.SpecialInstructions = strings.Repeat("a", 501)
	_, verr = v.Validate(form, nil, fixedNow)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "special_instructions")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v := New(DefaultRules())

	form := BookingForm{
		ServiceID:           "svc-1",
		ServiceDate:         "2026-01-01",
		ServiceTime:         "20:00",
		CustomerAddress:     "short",
		CustomerPhone:       "12345",
		SpecialInstructions: strings.Repeat("x", 600),
	}

	intent, verr := v.Validate(form, nil, fixedNow)
	assert.Nil(t, intent)
	require.NotNil(t, verr)
	assert.Len(t, verr.Fields, 5)
	for _, field := range []string{"service_date", "service_time", "customer_address", "customer_phone", "special_instructions"} {
		assert.Contains(t, verr.Fields, field)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	v := New(DefaultRules())

	_, verr := v.Validate(BookingForm{}, nil, fixedNow)
	require.NotNil(t, verr)
	for _, field := range []string{"service_id", "service_date", "service_time", "customer_address", "customer_phone"} {
		assert.Equal(t, "is required", verr.Fields[field], field)
	}
}

func TestValidatePackageSelection(t *testing.T) {
	v := New(DefaultRules())
	packages := []*models.Package{
		{ID: "basic", ServiceID: "svc-1", Price: 499, IsActive: true},
		{ID: "premium", ServiceID: "svc-1", Price: 999, IsActive: true},
	}

	t.Run("required when offered", func(t *testing.T) {
		_, verr := v.Validate(validForm(), packages, fixedNow)
		require.NotNil(t, verr)
		assert.Equal(t, "is required", verr.Fields["package_id"])
	})

	t.Run("must be from the list", func(t *testing.T) {
		form := validForm()
		form.PackageID = "gold"
		_, verr := v.Validate(form, packages, fixedNow)
		require.NotNil(t, verr)
		assert.Contains(t, verr.Fields, "package_id")
	})

	t.Run("selected", func(t *testing.T) {
		form := validForm()
		form.PackageID = "premium"
		intent, verr := v.Validate(form, packages, fixedNow)
		require.Nil(t, verr)
		require.NotNil(t, intent.Package)
		assert.Equal(t, 999.0, intent.Package.Price)
	})

	t.Run("rejected when none offered", func(t *testing.T) {
		form := validForm()
		form.PackageID = "basic"
		_, verr := v.Validate(form, nil, fixedNow)
		require.NotNil(t, verr)
		assert.Contains(t, verr.Fields, "package_id")
	})
}

func TestValidateAmount(t *testing.T) {
	v := New(DefaultRules())
	form := validForm()
	zero := 0.0
	form.TotalAmount = &zero

	_, verr := v.Validate(form, nil, fixedNow)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "total_amount")
}

func TestCustomRules(t *testing.T) {
	v := New(Rules{MaxAdvanceDays: 7, OpenHour: 8, CloseHour: 20, MinAddressLength: 5, MaxInstructionsLength: 10})

	form := validForm()
	form.ServiceTime = "08:15"
	form.CustomerAddress = "Flat 1"
	_, verr := v.Validate(form, nil, fixedNow)
	assert.Nil(t, verr)

	form.ServiceDate = fixedNow.AddDate(0, 0, 8).Format(models.DateLayout)
	_, verr = v.Validate(form, nil, fixedNow)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "service_date")
}

package orders

import (
	"errors"
	"github.com/go-playground/validator/v10"
	"strings"
)

type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Country string `json:"country" validate:"required"`
	Pincode string `json:"pincode" validate:"required,len=6,number"`
	Phone   string `json:"phone,omitempty" validate:"omitempty,len=10,number"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

var fieldMessages = map[string]string{
	"Street":  "street is required",
	"City":    "city is required",
	"State":   "state is required",
	"Country": "country is required",
	"Pincode": "pincode must be a 6-digit number",
	"Phone":   "phone must be a 10-digit number",
}

// Normalize trims surrounding whitespace from every field.
func (a Address) Normalize() Address {
	return Address{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Country: strings.TrimSpace(a.Country),
		Pincode: strings.TrimSpace(a.Pincode),
		Phone:   strings.TrimSpace(a.Phone),
	}
}

// ValidateAddress normalizes a and reports the first problem as a validation error.
// A nil address is reported as missing.
func ValidateAddress(a *Address) (Address, error) {
	if a == nil {
		return Address{}, Validationf("shippingAddress is required")
	}
	n := a.Normalize()
	if err := validate.Struct(n); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessages[fe.StructField()])
			}
			return Address{}, Validationf("%s", strings.Join(msgs, "; "))
		}
		return Address{}, Validationf("invalid shippingAddress")
	}
	return n, nil
}

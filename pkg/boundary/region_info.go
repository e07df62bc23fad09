package boundary

import (
	"github.com/go-playground/validator/v10"
	"github.com/openfroyo/phonebridge/pkg/engine"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegionInfo describes a parsed number. The two strings are independent
// values; native bridges copy each into its own allocation.
type RegionInfo struct {
	// RegionCode is the international calling code, e.g. 60 for Malaysia.
	RegionCode uint16 `json:"region_code" validate:"required"`

	// PhoneNumberValue is the national significant number as an integer.
	PhoneNumberValue uint64 `json:"phone_number_value"`

	// CountryCode is the ISO 3166-1 alpha-2 region, or "001" for
	// non-geographic entities.
	CountryCode string `json:"country_code" validate:"required,min=2,max=3,alphanum,uppercase"`

	// FormattedNumber is the International rendering. It contains the calling
	// code, so it parses back to the same number under any region.
	FormattedNumber string `json:"formatted_number" validate:"required,startswith=+"`
}

// Validate checks that the record is complete. A record the engine could not
// fill is an engine fault, so failures are internal.
func (r RegionInfo) Validate() error {
	if err := validate.Struct(r); err != nil {
		return engine.NewInternalError(internalMessage, err).
			WithCode(engine.ErrCodeInvalidRecord)
	}
	return nil
}

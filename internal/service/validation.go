package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/pkg/util"
)

// draftValidator checks protocol drafts, collecting every violation
// instead of failing on the first so the driver can fix the whole form
// in one pass.
type draftValidator struct {
	validate *validator.Validate
}

func newDraftValidator() *draftValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("phonedigits", func(fl validator.FieldLevel) bool {
		return digitCount(fl.Field().String()) >= 10
	})
	return &draftValidator{validate: v}
}

// ValidateDraft returns nil or a single ValidationError whose details
// enumerate all missing/invalid fields.
func (dv *draftValidator) ValidateDraft(input CreateInput) error {
	details := map[string]any{}

	if err := dv.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok {
			for _, fe := range fieldErrs {
				details[fieldPath(fe)] = violationMessage(fe)
			}
		} else {
			return util.NewValidationError("invalid protocol draft", nil)
		}
	}

	dv.crossFieldRules(input, details)

	if len(details) > 0 {
		return util.NewValidationError("protocol draft has missing or invalid fields", details)
	}
	return nil
}

// crossFieldRules covers the constraints validator tags cannot express.
func (dv *draftValidator) crossFieldRules(input CreateInput, details map[string]any) {
	switch input.ReplacementType {
	case domain.ReplacementInversion:
		if len(input.LineItems) != 1 {
			details["line_items"] = "inversion protocols must have exactly one line item"
		}
	case domain.ReplacementDamage:
		if strings.TrimSpace(input.EvidencePhotos.DamageURL) == "" {
			details["evidence_photos.damage"] = "damage photo is required for damage protocols"
		}
	}
	if strings.TrimSpace(input.EvidencePhotos.DriverAtSiteURL) == "" {
		details["evidence_photos.driver_at_site"] = "driver-at-site photo is required"
	}
	if strings.TrimSpace(input.EvidencePhotos.ProductLotURL) == "" {
		details["evidence_photos.product_lot"] = "product lot photo is required"
	}
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	*target = fieldErrs
	return true
}

func fieldPath(fe validator.FieldError) string {
	// strip the struct name prefix, lower-case the rest
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	return strings.ToLower(path)
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("needs at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "phonedigits":
		return "must contain at least 10 digits"
	case "uuid4":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func digitCount(s string) int {
	count := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			count++
		}
	}
	return count
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// forbiddenTitleWord may not appear in a title in any casing.
const forbiddenTitleWord = "hello"

// maxPriceDigits mirrors the NUMERIC(15,2) column the postgres store uses.
const maxPriceDigits = 15

var maxPrice = decimal.New(1, maxPriceDigits-PriceScale)

// maxPriceInputLength bounds the raw price text before it is parsed.
const maxPriceInputLength = 64

// ValidatedFields holds normalized values that passed validation
type ValidatedFields struct {
	Title   *string
	Content *string
	Price   *decimal.Decimal
	Public  *bool
}

// Validator applies field and cross-record rules to proposed product values
type Validator struct {
	repository Repository
}

// NewValidator creates a validator that checks title uniqueness against repo.
func NewValidator(repo Repository) *Validator {
	return &Validator{repository: repo}
}

// Validate checks fields. excludeID is the product being updated (0 on create);
// requireTitle is set for create and full update.
func (v *Validator) Validate(ctx context.Context, fields ProductFields, excludeID int64, requireTitle bool) (*ValidatedFields, error) {
	verr := &ValidationError{}
	out := &ValidatedFields{
		Content: fields.Content,
	}

	if fields.Title == nil {
		if requireTitle {
			verr.Add("title", CodeMissingRequiredField, "This field is required.")
		}
	} else {
		title, err := v.validateTitle(ctx, *fields.Title, excludeID, verr)
		if err != nil {
			return nil, err
		}
		out.Title = &title
	}

	if fields.Price != nil {
		if price, ok := ParsePrice(*fields.Price); ok {
			out.Price = &price
		} else {
			verr.Add("price", CodeMalformedPrice, fmt.Sprintf("A valid non-negative number with at most %d digits is required.", maxPriceDigits))
		}
	}

	if fields.Public != nil {
		if public, err := strconv.ParseBool(strings.TrimSpace(*fields.Public)); err == nil {
			out.Public = &public
		} else {
			verr.Add("public", CodeMalformedBoolean, "Must be a valid boolean.")
		}
	}

	if !verr.Empty() {
		return nil, verr
	}
	return out, nil
}

func (v *Validator) validateTitle(ctx context.Context, raw string, excludeID int64, verr *ValidationError) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		verr.Add("title", CodeMissingRequiredField, "This field may not be blank.")
		return title, nil
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		verr.Add("title", CodeTitleTooLong, fmt.Sprintf("Ensure this field has no more than %d characters.", MaxTitleLength))
	}
	if strings.Contains(strings.ToLower(title), forbiddenTitleWord) {
		verr.Add("title", CodeContentPolicyViolation, "Hello is not allowed")
	}

	existing, err := v.repository.FindByTitle(ctx, title)
	switch {
	case errors.Is(err, ErrProductNotFound):
	case err != nil:
		return "", fmt.Errorf("failed to check title uniqueness: %w", err)
	case existing.ID != excludeID:
		verr.Add("title", CodeDuplicateTitle, "product with this title already exists.")
	}
	return title, nil
}

// ParsePrice parses a non-negative decimal and rounds it to two places.
// Magnitudes are bounded from the coefficient and exponent before any
// rescaling, so exponent notation like 1e50000000 is rejected cheaply.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxPriceInputLength {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.IsNegative() {
		return decimal.Decimal{}, false
	}
	if d.IsZero() {
		return decimal.Zero, true
	}

	// integer digits of coefficient * 10^exponent
	intDigits := len(d.Coefficient().String()) + int(d.Exponent())
	if intDigits > maxPriceDigits-PriceScale {
		return decimal.Decimal{}, false
	}
	if intDigits < -PriceScale {
		return decimal.Zero, true
	}

	d = d.Round(PriceScale)
	if d.GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// DuplicateTitleError builds the validation failure reported when the store
// rejects a title that slipped past the pre-write check.
func DuplicateTitleError() *ValidationError {
	verr := &ValidationError{}
	verr.Add("title", CodeDuplicateTitle, "product with this title already exists.")
	return verr
}

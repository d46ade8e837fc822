package gateway

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyLength is the longest accepted message body, counted in Unicode
// code points so multibyte characters are not penalized.
const MaxBodyLength = 1000

// e164Pattern accepts the full E.164 range: "+", a non-zero country digit,
// then 1 to 14 further digits. Short assigned numbers like "+12" are valid.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// SubmitMetadata is the optional metadata object on a submission. Only the
// domain is caller-supplied; client_id and timestamp are populated
// server-side and ignored on input.
type SubmitMetadata struct {
	Timestamp string `json:"timestamp,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Domain    string `json:"domain,omitempty" validate:"omitempty,max=255"`
}

// SubmitRequest is the request body for POST /api/v1/messages.
type SubmitRequest struct {
	SenderNumber string          `json:"sender_number" validate:"required,e164_strict"`
	MessageBody  string          `json:"message_body" validate:"required,notblank,max=1000"`
	Metadata     *SubmitMetadata `json:"metadata,omitempty"`
}

// newValidator builds the request validator with the strict E.164 rule and
// a blank-body rule. The builtin e164 tag rejects two-digit numbers that
// are real assigned country codes, so the gateway carries its own pattern;
// notblank rejects bodies that are empty after trimming, which the required
// tag alone lets through.
func newValidator() *validator.Validate {
	v := validator.New()
	// MustRegister semantics: the tag names and patterns are static, a
	// registration error is a programming bug.
	if err := v.RegisterValidation("e164_strict", func(fl validator.FieldLevel) bool {
		return e164Pattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("failed to register e164_strict validator: " + err.Error())
	}
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic("failed to register notblank validator: " + err.Error())
	}
	return v
}

// validationMessage maps a validator error onto the wire message the
// original ingress contract promises.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "Invalid request payload"
	}
	switch errs[0].Field() {
	case "SenderNumber":
		return "sender_number must be a valid E.164 phone number"
	case "MessageBody":
		switch errs[0].Tag() {
		case "max":
			return "message_body exceeds maximum length of 1000 characters"
		case "notblank":
			return "message_body cannot be blank"
		}
		return "message_body is required"
	case "Domain":
		return "metadata.domain exceeds maximum length"
	}
	return "Invalid request payload"
}

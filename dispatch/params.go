package dispatch

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Action string

const (
	ActionFetchSalesforceData Action = "fetchSalesforceData"
	ActionUploadToGoogleDrive Action = "uploadToGoogleDrive"
)

const (
	DefaultSalesforceQuery = "SELECT Id, Name FROM Account"
	DefaultFileName        = "UploadedFile.txt"
	DefaultFileContent     = "This is a sample file."
)

// Parameters are the values a user picks for one execution.
// Only the fields of the selected action are read. Optional fields are nil when
// absent; an empty string is a value, e.g. an empty file.
type Parameters struct {
	Action              Action  `json:"action" validate:"required"`
	SalesforceQuery     *string `json:"salesforceQuery,omitempty"`
	GoogleDriveFolderId string  `json:"googleDriveFolderId,omitempty" validate:"required_if=Action uploadToGoogleDrive"`
	FileName            *string `json:"fileName,omitempty"`
	FileContent         *string `json:"fileContent,omitempty"`
}

// String returns a pointer to s, for the optional Parameters fields
func String(s string) *string {
	return &s
}

// WorkflowContext is the shared workflow state handed to the decision service. It is never modified.
type WorkflowContext map[string]any

// WithDefaults fills absent action parameters
func (p Parameters) WithDefaults() Parameters {
	if p.SalesforceQuery == nil {
		p.SalesforceQuery = String(DefaultSalesforceQuery)
	}
	if p.FileName == nil {
		p.FileName = String(DefaultFileName)
	}
	if p.FileContent == nil {
		p.FileContent = String(DefaultFileContent)
	}
	return p
}

var paramsValidator = newParamsValidator()

func newParamsValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns a ParameterError for the first missing or invalid parameter
func (p Parameters) Validate() error {
	err := paramsValidator.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return ParameterError{Name: fieldErrs[0].Field(), Reason: reason(fieldErrs[0])}
	}
	return ParameterError{Reason: err.Error()}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required for action " + fe.Param()[strings.Index(fe.Param(), " ")+1:]
	default:
		return "failed " + fe.Tag() + " check"
	}
}

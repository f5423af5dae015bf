package decision

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SalesforceOrg is the org chosen by the decision service for one execution
type SalesforceOrg struct {
	InstanceUrl string `json:"instanceUrl" validate:"required,url"`
	AccessToken string `json:"accessToken" validate:"required"`
}

// GoogleDrive is the drive account chosen by the decision service for one execution
type GoogleDrive struct {
	AccessToken string `json:"accessToken" validate:"required"`
}

// OrgSelection is the body returned by the decision service.
// Either side may be absent; it is only checked once a branch needs it.
type OrgSelection struct {
	SelectedSalesforceOrg *SalesforceOrg `json:"selectedSalesforceOrg"`
	SelectedGoogleDrive   *GoogleDrive   `json:"selectedGoogleDrive"`
}

// Decision pairs the parsed selection with the body exactly as received
type Decision struct {
	Selection OrgSelection
	Raw       json.RawMessage
}

// Request is the body posted to the decision service
type Request struct {
	Action  string         `json:"action"`
	Context map[string]any `json:"context"`
}

// SchemaError is returned when the decision lacks what a branch needs
type SchemaError struct {
	Field string
	Err   error
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("decision is missing a valid %s: %v", e.Field, e.Err)
}

func (e SchemaError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// SalesforceOrg returns the selected org, or a SchemaError if it is absent or incomplete
func (s OrgSelection) SalesforceOrg() (SalesforceOrg, error) {
	if s.SelectedSalesforceOrg == nil {
		return SalesforceOrg{}, SchemaError{Field: "selectedSalesforceOrg", Err: fmt.Errorf("not present")}
	}
	if err := validate.Struct(s.SelectedSalesforceOrg); err != nil {
		return SalesforceOrg{}, SchemaError{Field: "selectedSalesforceOrg", Err: err}
	}
	return *s.SelectedSalesforceOrg, nil
}

// GoogleDrive returns the selected drive account, or a SchemaError if it is absent or incomplete
func (s OrgSelection) GoogleDrive() (GoogleDrive, error) {
	if s.SelectedGoogleDrive == nil {
		return GoogleDrive{}, SchemaError{Field: "selectedGoogleDrive", Err: fmt.Errorf("not present")}
	}
	if err := validate.Struct(s.SelectedGoogleDrive); err != nil {
		return GoogleDrive{}, SchemaError{Field: "selectedGoogleDrive", Err: err}
	}
	return *s.SelectedGoogleDrive, nil
}

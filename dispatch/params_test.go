package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters_WithDefaults(t *testing.T) {
	tests := []struct {
		name   string
		params Parameters
		want   Parameters
	}{
		{
			name:   "absent fields  defaults filled",
			params: Parameters{Action: ActionUploadToGoogleDrive, GoogleDriveFolderId: "F1", FileName: String("a.txt")},
			want: Parameters{
				Action:              ActionUploadToGoogleDrive,
				SalesforceQuery:     String(DefaultSalesforceQuery),
				GoogleDriveFolderId: "F1",
				FileName:            String("a.txt"),
				FileContent:         String(DefaultFileContent),
			},
		},
		{
			name:   "empty strings  kept",
			params: Parameters{Action: ActionUploadToGoogleDrive, SalesforceQuery: String(""), FileName: String(""), FileContent: String("")},
			want: Parameters{
				Action:          ActionUploadToGoogleDrive,
				SalesforceQuery: String(""),
				FileName:        String(""),
				FileContent:     String(""),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.WithDefaults())
		})
	}
}

func TestParameters_UnmarshalEmptyFileContent(t *testing.T) {
	var p Parameters
	require.NoError(t, json.Unmarshal([]byte(`{"action":"uploadToGoogleDrive","fileContent":""}`), &p))

	p = p.WithDefaults()
	require.NotNil(t, p.FileContent)
	assert.Equal(t, "", *p.FileContent)
	assert.Equal(t, DefaultFileName, *p.FileName)
}

func TestParameters_Validate(t *testing.T) {
	tests := []struct {
		name     string
		params   Parameters
		wantName string
		wantErr  bool
	}{
		{name: "fetch with query", params: Parameters{Action: ActionFetchSalesforceData}},
		{name: "upload with folder", params: Parameters{Action: ActionUploadToGoogleDrive, GoogleDriveFolderId: "F1"}},
		{name: "unsupported action is not a parameter error", params: Parameters{Action: "bogus"}},
		{name: "no action", params: Parameters{}, wantName: "action", wantErr: true},
		{name: "upload without folder", params: Parameters{Action: ActionUploadToGoogleDrive}, wantName: "googleDriveFolderId", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var pe ParameterError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantName, pe.Name)
			assert.Equal(t, 400, pe.HTTPStatus())
		})
	}
}

func TestParameterError_Message(t *testing.T) {
	err := Parameters{Action: ActionUploadToGoogleDrive}.Validate()
	assert.EqualError(t, err, `parameter "googleDriveFolderId" is required for action uploadToGoogleDrive`)
}

func TestRecords(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "object  one record", raw: `{"id":"1"}`, want: []string{`{"id":"1"}`}},
		{name: "array  one record per element", raw: ` [{"id":"1"},{"id":"2"}] `, want: []string{`{"id":"1"}`, `{"id":"2"}`}},
		{name: "empty array  no records", raw: `[]`, want: []string{}},
		{name: "whitespace preserved inside object", raw: `{ "id" : "1" }`, want: []string{`{ "id" : "1" }`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Records([]byte(tt.raw))
			require.NoError(t, err)
			strs := make([]string, len(got))
			for i, r := range got {
				strs[i] = string(r)
			}
			assert.Equal(t, tt.want, strs)
		})
	}
}

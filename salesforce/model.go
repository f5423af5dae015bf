package salesforce

// QueryResponse is the envelope salesforce wraps query results in.
// Pagination (nextRecordsUrl) is not followed.
type QueryResponse[E any] struct {
	TotalSize      int    `json:"totalSize"`
	Done           bool   `json:"done"`
	NextRecordsUrl string `json:"nextRecordsUrl,omitempty"`
	Records        []E    `json:"records"`
}

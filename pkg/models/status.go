package models

// PageStatus represents the processing status of a page in the state ledger
type PageStatus string

const (
	PageStatusUnset    PageStatus = ""          // Zero value = unset/unknown
	PageStatusPending  PageStatus = "pending"   // Page observed but not processed yet
	PageStatusSuccess  PageStatus = "success"   // Page expanded, or its record saved
	PageStatusFailure  PageStatus = "failure"   // Extraction or save failed
	PageStatusNotFound PageStatus = "not_found" // Page not in ledger
	PageStatusDBError  PageStatus = "db_error"  // Ledger read failed
)

// String implements fmt.Stringer for logging
func (s PageStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s PageStatus) IsValid() bool {
	switch s {
	case PageStatusPending, PageStatusSuccess, PageStatusFailure:
		return true
	}
	return false
}

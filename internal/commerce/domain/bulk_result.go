package domain

// BulkItemError records why one product of a bulk sync failed.
type BulkItemError struct {
	ProductID string `json:"product_id"`
	Error     string `json:"error"`
}

// BulkResult summarizes a bulk catalog sync. Errors keep the input order.
type BulkResult struct {
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Errors  []BulkItemError `json:"errors"`
}

// NewBulkResult returns an empty summary.
func NewBulkResult() BulkResult {
	return BulkResult{Errors: []BulkItemError{}}
}

// RecordSuccess counts one synced product.
func (r *BulkResult) RecordSuccess() {
	r.Success++
}

// RecordFailure counts one failed product and keeps its error.
func (r *BulkResult) RecordFailure(productID string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, BulkItemError{ProductID: productID, Error: err.Error()})
}

// Total returns the number of products processed.
func (r BulkResult) Total() int {
	return r.Success + r.Failed
}

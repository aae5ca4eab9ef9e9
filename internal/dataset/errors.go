package dataset

import "errors"

var (
	// ErrSampleTooLarge is returned when more rows are requested than the
	// dataset holds.
	ErrSampleTooLarge = errors.New("sample size exceeds number of rows")

	// ErrMalformedRow is reported for rows that do not hold a link and a CID.
	ErrMalformedRow = errors.New("malformed row")

	// ErrEmptyDataset is returned when a dataset has no usable rows.
	ErrEmptyDataset = errors.New("dataset has no usable rows")
)

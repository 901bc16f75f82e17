package domain

// RunReport is what the caller boundary receives after one upload+cycle run
// against a single logical storage. Warnings are non-fatal removal failures,
// in the order the excess entries were selected.
type RunReport struct {
	ID       string
	Backend  string
	SubID    string
	Uploaded []string
	Removed  []string
	Warnings []string
}

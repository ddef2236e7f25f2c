package model

// GroupReport is a Report restricted to the records sharing one group key.
// Records without a key are reported under the empty key.
type GroupReport struct {
	Key    string
	Report *Report
}

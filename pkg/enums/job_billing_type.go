package enums

import "fmt"

// JobBillingType distinguishes fixed-quote jobs from time-and-materials jobs.
type JobBillingType string

const (
	JobBillingTypeFixed            JobBillingType = "fixed"
	JobBillingTypeTimeAndMaterials JobBillingType = "time_and_materials"
)

var validJobBillingTypes = []JobBillingType{
	JobBillingTypeFixed,
	JobBillingTypeTimeAndMaterials,
}

// String implements fmt.Stringer.
func (j JobBillingType) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JobBillingType.
func (j JobBillingType) IsValid() bool {
	for _, candidate := range validJobBillingTypes {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJobBillingType converts raw input into a JobBillingType.
func ParseJobBillingType(value string) (JobBillingType, error) {
	for _, candidate := range validJobBillingTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job billing type %q", value)
}

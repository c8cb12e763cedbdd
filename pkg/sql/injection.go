package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a parameter value.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	ParamName   string // Payload key of the parameter that failed the check
	ParamValue  any    // The value that was checked
}

// CheckParameterForInjection uses libinjection to detect SQL injection patterns
// in a parameter value.
//
// Strings and lists of strings are checked. Numbers, booleans and other types
// cannot carry an injection pattern and return nil.
//
// Example:
//
//	result := CheckParameterForInjection("course_id", "c-123")
//	// result == nil
//
//	result := CheckParameterForInjection("learner_id", "'; DROP TABLE courses--")
//	// result.IsSQLi == true
//	// result.ParamName == "learner_id"
func CheckParameterForInjection(paramName string, value any) *InjectionCheckResult {
	switch v := value.(type) {
	case string:
		isSQLi, fingerprint := libinjection.IsSQLi(v)
		if isSQLi {
			return &InjectionCheckResult{
				IsSQLi:      true,
				Fingerprint: string(fingerprint),
				ParamName:   paramName,
				ParamValue:  value,
			}
		}
	case []string:
		for _, item := range v {
			if result := CheckParameterForInjection(paramName, item); result != nil {
				result.ParamValue = value
				return result
			}
		}
	}

	return nil
}

// CheckBinding validates the arguments of a bound statement in placeholder order.
func CheckBinding(b *Binding) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for i, arg := range b.Args {
		name := ""
		if i < len(b.Names) {
			name = b.Names[i]
		}
		if result := CheckParameterForInjection(name, arg); result != nil {
			results = append(results, result)
		}
	}
	return results
}

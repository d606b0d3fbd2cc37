package query

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes a parameter that looks like an SQL injection
// attempt. Params are never interpolated into statements, so a finding is
// reported and execution continues.
type InjectionFinding struct {
	Position    int
	Fingerprint string
}

// ScreenParams checks every string param with libinjection.
func ScreenParams(params []any) []InjectionFinding {
	var findings []InjectionFinding
	for i, v := range params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
			findings = append(findings, InjectionFinding{Position: i, Fingerprint: string(fingerprint)})
		}
	}
	return findings
}

package refdata

import "testing"

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   interface{}
		want *float64
	}{
		{nil, nil},
		{"", nil},
		{"  ", nil},
		{"abc", nil},
		{"NaN", nil},
		{"nan", nil},
		{"Inf", nil},
		{"-Inf", nil},
		{"+Infinity", nil},
		{"1.17", ptr(1.17)},
		{" 2 ", ptr(2)},
		{3, ptr(3)},
		{0.5, ptr(0.5)},
	}
	for _, tt := range tests {
		got := toNumber(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("toNumber(%#v) = %v, want nil", tt.in, *got)
		case tt.want != nil && (got == nil || *got != *tt.want):
			t.Errorf("toNumber(%#v) = %v, want %v", tt.in, got, *tt.want)
		}
	}
}

func TestParseConversionFactorsRejectsNonFinite(t *testing.T) {
	rows, err := parseConversionFactors([]byte("species,state,presentation,toLiveWeightFactor,quotaStatus,riskScore\nCOD,FRE,GUT,NaN,quota,Inf\n"))
	if err != nil {
		t.Fatalf("parseConversionFactors: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].ToLiveWeightFactor != nil || rows[0].RiskScore != nil {
		t.Fatalf("non-finite values must be left undefined: %+v", rows[0])
	}
}

func ptr(f float64) *float64 { return &f }

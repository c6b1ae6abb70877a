package meta

import "testing"

func TestAccessorProperty(t *testing.T) {
	tests := []struct {
		prefix, method string
		want           string
		ok             bool
	}{
		{"get", "getCount", "count", true},
		{"set", "setCount", "count", true},
		{"get", "getURL", "uRL", true},
		{"get", "get", "", false},
		{"get", "getcount", "", false},
		{"get", "fetchCount", "", false},
		{"get", "ge", "", false},
		{"", "Count", "count", true},
		{"", "count", "", false},
		{"", "", "", false},
		{"Set", "SetCount", "count", true},
		{"Set", "Set", "", false},
		{"get", "getÉtat", "état", true},
	}
	for _, tt := range tests {
		t.Run(tt.prefix+"/"+tt.method, func(t *testing.T) {
			got, ok := AccessorProperty(tt.prefix, tt.method)
			if got != tt.want || ok != tt.ok {
				t.Errorf("AccessorProperty(%q, %q) = %q, %v; want %q, %v", tt.prefix, tt.method, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAccessorName(t *testing.T) {
	if got := AccessorName("set", "count"); got != "setCount" {
		t.Errorf("AccessorName = %q, want setCount", got)
	}
	if got := AccessorName("", "count"); got != "Count" {
		t.Errorf("AccessorName = %q, want Count", got)
	}
}

func TestCapitalization(t *testing.T) {
	if Capitalize("") != "" || Decapitalize("") != "" {
		t.Error("empty strings should pass through")
	}
	if Capitalize("name") != "Name" || Capitalize("Name") != "Name" {
		t.Error("Capitalize should upper-case only the first letter")
	}
	if Decapitalize("Name") != "name" || Decapitalize("nAME") != "nAME" {
		t.Error("Decapitalize should lower-case only the first letter")
	}
}

package ddc

import (
	"reflect"
	"testing"
)

func TestParseCapabilities(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Capabilities
	}{
		{
			name:  "nested values",
			input: "(prot(monitor)type(lcd)vcp(10 12 14(05 06 08) 60)mccs_ver(2.1))",
			want: Capabilities{
				0x10: nil,
				0x12: nil,
				0x14: []byte{0x05, 0x06, 0x08},
				0x60: nil,
			},
		},
		{
			name:  "uppercase hex and multiple groups",
			input: "(vcp(02 10 12 14(01 05 0B) 60(0F 11 12) D6(01 04)))",
			want: Capabilities{
				0x02: nil,
				0x10: nil,
				0x12: nil,
				0x14: []byte{0x01, 0x05, 0x0B},
				0x60: []byte{0x0F, 0x11, 0x12},
				0xD6: []byte{0x01, 0x04},
			},
		},
		{
			name:  "codes without separators",
			input: "vcp(101214(0506))",
			want: Capabilities{
				0x10: nil,
				0x12: nil,
				0x14: []byte{0x05, 0x06},
			},
		},
		{
			name:  "vcpname is not the vcp block",
			input: "(vcpname(10(Brightness))vcp(10 12))",
			want:  Capabilities{0x10: nil, 0x12: nil},
		},
		{
			name:  "truncated mid block",
			input: "(vcp(10 12 14(05 0",
			want: Capabilities{
				0x10: nil,
				0x12: nil,
				0x14: []byte{0x05},
			},
		},
		{
			name:  "non-ascii terminates",
			input: "(vcp(10 12\xff 14(05)))",
			want:  Capabilities{0x10: nil, 0x12: nil},
		},
		{
			name:  "empty group is nil",
			input: "vcp(14() 10)",
			want:  Capabilities{0x14: nil, 0x10: nil},
		},
		{
			name:  "deeper groups skipped",
			input: "vcp(14(05(AA BB) 06) 10)",
			want: Capabilities{
				0x14: []byte{0x05, 0x06},
				0x10: nil,
			},
		},
		{
			name:  "no vcp block",
			input: "(prot(monitor)type(lcd))",
			want:  Capabilities{},
		},
		{
			name:  "empty",
			input: "",
			want:  Capabilities{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCapabilities(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCapabilities(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCapabilities_Total(t *testing.T) {
	base := "(prot(monitor)type(LCD)model(X)cmds(01 02 03 07 0C E3 F3)vcp(02 04 05 08 10 12 14(05 08 0B) 16 18 1A 52 60(01 03 11) AC AE B2 B6 C6 C8 C9 D6(01 04) DF)mswhql(1)asset_eep(40)mccs_ver(2.2))"

	// Every prefix of a realistic string, plus some hostile shapes.
	inputs := []string{")))", "((((", "vcp", "vcp(", "vcp)", "vcp(((", "vcp())", "vcp(zz yy)"}
	for i := range base {
		inputs = append(inputs, base[:i])
	}

	for _, in := range inputs {
		got := ParseCapabilities(in)
		if got == nil {
			t.Fatalf("ParseCapabilities(%q) returned nil map", in)
		}
	}

	full := ParseCapabilities(base)
	if !full.Supports(VCPLuminance) || !full.Supports(VCPContrast) {
		t.Errorf("expected luminance and contrast, got %v", full)
	}
	if !reflect.DeepEqual(full.Values(VCPColorPreset), []byte{0x05, 0x08, 0x0B}) {
		t.Errorf("Values(0x14) = %v", full.Values(VCPColorPreset))
	}
}

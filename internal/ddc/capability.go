package ddc

import "strings"

// VCP feature codes used by this package.
const (
	VCPLuminance   byte = 0x10
	VCPContrast    byte = 0x12
	VCPColorPreset byte = 0x14
	VCPInput       byte = 0x60
	VCPPowerMode   byte = 0xD6
)

// Capabilities maps a supported VCP code to its allowed discrete values.
// A nil slice means the code is supported with no enumerated values.
type Capabilities map[byte][]byte

// Supports reports whether code appears in the capability string.
func (c Capabilities) Supports(code byte) bool {
	_, ok := c[code]
	return ok
}

// Values returns the allowed discrete values for code, or nil.
func (c Capabilities) Values(code byte) []byte {
	return c[code]
}

// ParseCapabilities extracts the vcp(...) block of an MCCS capability string.
//
// The scan tracks parenthesis depth from the opening parenthesis of the vcp
// block: at depth 1 each pair of hex digits is a feature code, at depth 2 each
// pair is an allowed value of the preceding code. Deeper groups are skipped.
//
// Capability strings come straight off the bus and are frequently truncated or
// malformed. The scan stops at the first non-ASCII byte or at a closing
// parenthesis that would leave the vcp block, and returns whatever it parsed.
// The returned map is never nil.
func ParseCapabilities(s string) Capabilities {
	caps := make(Capabilities)

	start := vcpBlockStart(s)
	if start < 0 {
		return caps
	}

	var (
		depth   int
		code    byte
		hasCode bool
		hi      byte
		hasHi   bool
	)

	for i := start; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 {
			break
		}

		d, isHex := hexValue(c)
		if !isHex {
			// A lone hex digit followed by a separator is noise.
			hasHi = false
		}

		switch {
		case c == '(':
			depth++
			if depth == 2 && hasCode && caps[code] == nil {
				caps[code] = []byte{}
			}
		case c == ')':
			depth--
			if depth < 1 {
				return normalise(caps)
			}
			if depth == 1 {
				hasCode = false
			}
		case isHex:
			if !hasHi {
				hi, hasHi = d, true
				continue
			}
			v := hi<<4 | d
			hasHi = false

			switch depth {
			case 1:
				code, hasCode = v, true
				if _, ok := caps[code]; !ok {
					caps[code] = nil
				}
			case 2:
				if hasCode {
					caps[code] = append(caps[code], v)
				}
			}
		}
	}

	return normalise(caps)
}

// vcpBlockStart returns the index of the '(' that opens the vcp block, or -1.
// Occurrences of "vcp" not followed by '(' (such as "vcpname") are skipped.
func vcpBlockStart(s string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], "vcp")
		if i < 0 {
			return -1
		}
		j := offset + i + len("vcp")
		for j < len(s) && s[j] == ' ' {
			j++
		}
		if j < len(s) && s[j] == '(' {
			return j
		}
		offset = offset + i + 1
	}
}

// normalise turns empty value groups, such as "14()", into nil.
func normalise(caps Capabilities) Capabilities {
	for k, v := range caps {
		if len(v) == 0 {
			caps[k] = nil
		}
	}
	return caps
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

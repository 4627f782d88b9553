package monitor

import "strings"

// Identity is the normalized DISPLAY\<hardware-id>\<instance-id> string used
// to correlate a monitor across enumeration sources.
type Identity string

// NormalizeIdentity derives an Identity from a raw device path such as
// \\?\DISPLAY#DEL4109#5&1a2b3c&0&UID4352#{e6f07b5f-...}. The path is cut to
// its first three segments, which are rejoined with a backslash. Paths that
// already use backslashes, and WMI instance names with a trailing _N suffix,
// normalize to the same value.
func NormalizeIdentity(devicePath string) Identity {
	p := strings.TrimSpace(devicePath)
	p = strings.TrimPrefix(p, `\\?\`)
	p = strings.ReplaceAll(p, `\`, "#")

	segments := strings.Split(p, "#")
	if len(segments) > 3 {
		segments = segments[:3]
	}
	if len(segments) == 3 {
		segments[2] = trimInstanceSuffix(segments[2])
	}
	return Identity(strings.Join(segments, `\`))
}

// trimInstanceSuffix strips the _N suffix WMI appends to instance names.
func trimInstanceSuffix(s string) string {
	i := strings.LastIndexByte(s, '_')
	if i < 0 || i == len(s)-1 {
		return s
	}
	for _, c := range s[i+1:] {
		if c < '0' || c > '9' {
			return s
		}
	}
	return s[:i]
}

// Equal compares identities case-insensitively.
func (id Identity) Equal(other Identity) bool {
	return strings.EqualFold(string(id), string(other))
}

// Key returns the canonical map key for the identity.
func (id Identity) Key() string {
	return strings.ToUpper(string(id))
}

// Slug returns a lower-case form safe for URL paths and MQTT topics.
func (id Identity) Slug() string {
	r := strings.NewReplacer(`\`, "-", "&", "_", "#", "-", "/", "-", "+", "_", " ", "_")
	return strings.ToLower(r.Replace(string(id)))
}

func (id Identity) String() string {
	return string(id)
}

// IdentitySet is a case-insensitive set of identities.
type IdentitySet map[string]struct{}

// NewIdentitySet builds a set from raw identity strings or device paths.
func NewIdentitySet(ids ...string) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			s[NormalizeIdentity(id).Key()] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is in the set. A nil set contains nothing.
func (s IdentitySet) Contains(id Identity) bool {
	_, ok := s[id.Key()]
	return ok
}

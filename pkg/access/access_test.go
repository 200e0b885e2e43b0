package access

import "testing"

func TestParsePermissionLevel(t *testing.T) {
	cases := []struct {
		in  string
		out PermissionLevel
	}{
		{"", -1},
		{"foo", -1},
		{AdminPermission.String(), AdminPermission},
		{MaintainPermission.String(), MaintainPermission},
		{WritePermission.String(), WritePermission},
		{ReadPermission.String(), ReadPermission},
		{NoPermission.String(), NoPermission},
		{"pull", ReadPermission},
		{"push", WritePermission},
		// Triage cannot push, so it must not reach the recheck threshold.
		{"triage", ReadPermission},
	}

	for _, c := range cases {
		out := ParsePermissionLevel(c.in)
		if out != c.out {
			t.Errorf("ParsePermissionLevel(%q) => %d, want %d", c.in, out, c.out)
		}
	}
}

func TestCanTriggerRecheck(t *testing.T) {
	cases := []struct {
		in  PermissionLevel
		out bool
	}{
		{NoPermission, false},
		{ReadPermission, false},
		{WritePermission, true},
		{MaintainPermission, true},
		{AdminPermission, true},
	}

	for _, c := range cases {
		if got := c.in.CanTriggerRecheck(); got != c.out {
			t.Errorf("%s.CanTriggerRecheck() => %v, want %v", c.in, got, c.out)
		}
	}
}

package utils

import "testing"

func TestSanitizeSlug(t *testing.T) {
	cases := map[string]string{
		"Acme":     "acme",
		"  acme  ": "acme",
		"ACME-OSS": "acme-oss",
	}
	for in, want := range cases {
		if got := SanitizeSlug(in); got != want {
			t.Errorf("SanitizeSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateLogin(t *testing.T) {
	valid := []string{"alice", "alice-b", "a1ice", "A1ice"}
	for _, login := range valid {
		if err := ValidateLogin(login); err != nil {
			t.Errorf("ValidateLogin(%q) = %v, want nil", login, err)
		}
	}

	invalid := []string{
		"",
		"-alice",
		"alice-",
		"al ice",
		"al_ice",
		"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}
	for _, login := range invalid {
		if err := ValidateLogin(login); err == nil {
			t.Errorf("ValidateLogin(%q) = nil, want error", login)
		}
	}
}

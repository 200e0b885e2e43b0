package webhook

import (
	"testing"

	"github.com/matryer/is"
)

func TestVerifySignature(t *testing.T) {
	is := is.New(t)

	body := []byte(`{"action":"opened"}`)
	sig := SignBody("s3cret", body)

	is.True(VerifySignature("s3cret", body, sig))
	is.True(!VerifySignature("wrong", body, sig))
	is.True(!VerifySignature("s3cret", []byte("tampered"), sig))
	is.True(!VerifySignature("s3cret", body, "sha1=deadbeef"))
	is.True(!VerifySignature("s3cret", body, "sha256=not-hex"))
	is.True(!VerifySignature("s3cret", body, ""))
}

func TestIsRecheckCommand(t *testing.T) {
	is := is.New(t)

	is.True(isRecheckCommand("/recheck"))
	is.True(isRecheckCommand("  /recheck  "))
	is.True(isRecheckCommand("/recheck please"))
	is.True(!isRecheckCommand("please /recheck"))
	is.True(!isRecheckCommand("looks good to me"))
	is.True(!isRecheckCommand(""))
}

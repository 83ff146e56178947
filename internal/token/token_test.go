package token

import "testing"

func TestSignAndVerify(t *testing.T) {
	sig := Sign("secret", "body")
	if !Verify("secret", "body", sig) {
		t.Error("Verify should accept its own Sign output")
	}
	if Verify("wrong-secret", "body", sig) {
		t.Error("Verify must reject a signature from a different secret")
	}
}

func TestChannelAuthRoundTrip(t *testing.T) {
	auth := SignChannelAuth("app_key", "app_secret", "1.1", "private-chat", "")
	if !VerifyChannelAuth("app_secret", "1.1", "private-chat", "", auth) {
		t.Error("VerifyChannelAuth should accept its own SignChannelAuth output")
	}
	if VerifyChannelAuth("app_secret", "1.1", "private-chat", "different-data", auth) {
		t.Error("VerifyChannelAuth must reject a signature for different channel_data")
	}
}

func TestPresenceChannelAuthIncludesChannelData(t *testing.T) {
	auth := SignChannelAuth("app_key", "app_secret", "1.1", "presence-lobby", `{"user_id":"u1"}`)
	if !VerifyChannelAuth("app_secret", "1.1", "presence-lobby", `{"user_id":"u1"}`, auth) {
		t.Error("presence channel auth should verify with matching channel_data")
	}
}

func TestSigninAuthRoundTrip(t *testing.T) {
	auth := SignSignin("app_key", "app_secret", "1.1", `{"user_id":"u1"}`)
	if !VerifySignin("app_secret", "1.1", `{"user_id":"u1"}`, auth) {
		t.Error("VerifySignin should accept its own SignSignin output")
	}
}

func TestSigninAuthStringFormat(t *testing.T) {
	got := SigninAuthString("1.1", `{"user_id":"u1"}`)
	want := `1.1::user::{"user_id":"u1"}`
	if got != want {
		t.Errorf("SigninAuthString = %q, want %q", got, want)
	}
}

func TestRequestSignatureRoundTrip(t *testing.T) {
	query := map[string]string{
		"auth_key":       "app_key",
		"auth_timestamp": "1700000000",
		"auth_version":   "1.0",
	}
	sig := SignRequest("app_secret", "POST", "/apps/1/events", query)
	if !VerifyRequest("app_secret", "POST", "/apps/1/events", query, sig) {
		t.Error("VerifyRequest should accept its own SignRequest output")
	}
}

func TestCanonicalQueryExcludesAuthSignature(t *testing.T) {
	withSig := map[string]string{"a": "1", "auth_signature": "ignored"}
	withoutSig := map[string]string{"a": "1"}
	if CanonicalQuery("GET", "/x", withSig) != CanonicalQuery("GET", "/x", withoutSig) {
		t.Error("auth_signature must not affect the canonical query string")
	}
}

func TestBodyMD5(t *testing.T) {
	if BodyMD5([]byte("hello")) != BodyMD5([]byte("hello")) {
		t.Error("BodyMD5 must be deterministic")
	}
	if BodyMD5([]byte("hello")) == BodyMD5([]byte("world")) {
		t.Error("BodyMD5 must differ for different bodies")
	}
}

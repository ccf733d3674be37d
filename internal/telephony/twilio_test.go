package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestTwilioDial(t *testing.T) {
	var gotPath string
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm

		user, _, ok := r.BasicAuth()
		if !ok || user != "AC123" {
			t.Errorf("basic auth user = %q, ok = %v", user, ok)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sid":"CA999","status":"queued"}`))
	}))
	defer srv.Close()

	tw, err := NewTwilio(TwilioConfig{
		AccountSID: "AC123",
		AuthToken:  "secret",
		From:       "+15550000",
		PublicURL:  "https://calls.example.com",
	})
	if err != nil {
		t.Fatalf("NewTwilio() error = %v", err)
	}
	tw.baseURL = srv.URL

	res, err := tw.Dial(context.Background(), DialRequest{CallID: "call-1", To: "+15550100"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if res.ProviderCallID != "CA999" || res.Status != "queued" {
		t.Errorf("Dial() = %+v", res)
	}

	if gotPath != "/Calls.json" {
		t.Errorf("path = %q", gotPath)
	}
	voiceURL := gotForm.Get("Url")
	if !strings.Contains(voiceURL, "/webhooks/voice") || !strings.Contains(voiceURL, "callId=call-1") {
		t.Errorf("voice URL = %q", voiceURL)
	}
	statusURL := gotForm.Get("StatusCallback")
	if !strings.Contains(statusURL, "/webhooks/status") {
		t.Errorf("status URL = %q", statusURL)
	}
	if gotForm.Get("From") != "+15550000" {
		t.Errorf("From = %q, want configured default", gotForm.Get("From"))
	}
}

func TestTwilioDialRequiresCallID(t *testing.T) {
	tw, err := NewTwilio(TwilioConfig{AccountSID: "AC1", AuthToken: "x", PublicURL: "https://x.example.com"})
	if err != nil {
		t.Fatalf("NewTwilio() error = %v", err)
	}
	if _, err := tw.Dial(context.Background(), DialRequest{To: "+15550100"}); err == nil {
		t.Error("Dial() without callId: error = nil")
	}
}

func TestValidateSignature(t *testing.T) {
	token := "secret-token"
	fullURL := "https://calls.example.com/webhooks/gather?callId=call-1"
	form := url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"yes"},
	}

	// Build the expected signature the same way the provider does.
	sigString := fullURL + "CallSid" + "CA1" + "SpeechResult" + "yes"
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(sigString))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !ValidateSignature(token, sig, fullURL, form) {
		t.Error("valid signature rejected")
	}
	if ValidateSignature(token, sig, fullURL+"&x=1", form) {
		t.Error("signature accepted for different URL")
	}
	if ValidateSignature("other-token", sig, fullURL, form) {
		t.Error("signature accepted for wrong token")
	}
	if ValidateSignature(token, "", fullURL, form) {
		t.Error("empty signature accepted")
	}
}

func TestTwiMLRender(t *testing.T) {
	doc := SpeakAndGather("Are you still interested?", "Polly.Joanna", "https://calls.example.com/webhooks/gather?callId=c1")
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, xmlHeader) {
		t.Errorf("missing XML declaration:\n%s", s)
	}
	for _, want := range []string{"<Response>", "Are you still interested?", `input="speech"`, `method="POST"`} {
		if !strings.Contains(s, want) {
			t.Errorf("rendered TwiML missing %q:\n%s", want, s)
		}
	}

	final := SpeakAndHangup("Goodbye!", "")
	out, err = final.Render()
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(string(out), "<Hangup></Hangup>") {
		t.Errorf("missing Hangup:\n%s", out)
	}
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

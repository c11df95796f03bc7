package action

import (
	"encoding/json"
	"reflect"
	"testing"
)

func mustParse(t *testing.T, raw string) Action {
	t.Helper()
	a, err := ParseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("ParseJSON(%s): %v", raw, err)
	}
	return a
}

func TestParse_ChatForms(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`{"chat":{"message":"hello"}}`, "hello", true},
		{`{"chat":"  hi there  "}`, "hi there", true},
		{`{"chat":{"message":null}}`, "", false},
		{`{"chat":{"message":"   "}}`, "", false},
		{`{"chat":null}`, "", false},
		{`{}`, "", false},
		{`{"chat":42}`, "42", true},
	}
	for _, tc := range cases {
		a := mustParse(t, tc.raw)
		got, ok := a.Chat.Text()
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: chat=(%q,%v) want (%q,%v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParse_NavigationCoercion(t *testing.T) {
	a := mustParse(t, `{"navigation":{"dx":"3","dy":null,"dz":-2.6}}`)
	if a.Navigation.DX == nil || *a.Navigation.DX != 3 {
		t.Fatalf("dx=%v want 3", a.Navigation.DX)
	}
	if a.Navigation.DY != nil {
		t.Fatalf("dy should stay absent, got %v", *a.Navigation.DY)
	}
	if a.Navigation.DZ == nil || *a.Navigation.DZ != -3 {
		t.Fatalf("dz=%v want -3", a.Navigation.DZ)
	}
	if !a.Navigation.HasRequest() {
		t.Fatalf("expected navigation request")
	}

	a = mustParse(t, `{"navigation":{"dx":"east","dz":0}}`)
	if a.Navigation.DX != nil {
		t.Fatalf("non-numeric dx should be absent")
	}
	if a.Navigation.DZ == nil || *a.Navigation.DZ != 0 {
		t.Fatalf("dz=0 should be preserved")
	}
	if a.Navigation.HasRequest() {
		t.Fatalf("zero/absent axes must not count as a request")
	}
}

func TestParse_IntOutOfRangeIsAbsent(t *testing.T) {
	cases := []struct {
		raw  string
		want *int
	}{
		{`{"navigation":{"dx":1e300}}`, nil},
		{`{"navigation":{"dx":-1e300}}`, nil},
		{`{"navigation":{"dx":4294967296}}`, nil},
		{`{"navigation":{"dx":"99999999999"}}`, nil},
		{`{"navigation":{"dx":2147483647}}`, Int(2147483647)},
		{`{"navigation":{"dx":-2147483648.2}}`, Int(-2147483648)},
	}
	for _, tc := range cases {
		got := mustParse(t, tc.raw).Navigation.DX
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("%s: want absent, got %d", tc.raw, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("%s: got %v want %d", tc.raw, got, *tc.want)
		}
	}
}

func TestParse_ViewAndTarget(t *testing.T) {
	a := mustParse(t, `{
	  "view":{"yawAbs":"90.5","pitchDelta":-10},
	  "target":{"x":"1","y":64,"z":"-3","blockId":"  ","entityName":" Alex "}
	}`)
	if a.View.YawAbs == nil || *a.View.YawAbs != 90.5 {
		t.Fatalf("yawAbs=%v", a.View.YawAbs)
	}
	if a.View.PitchAbs != nil || a.View.YawDelta != nil {
		t.Fatalf("absent view fields must stay absent")
	}
	if a.View.PitchDelta == nil || *a.View.PitchDelta != -10 {
		t.Fatalf("pitchDelta=%v", a.View.PitchDelta)
	}
	if a.Target == nil || !a.Target.HasPos() {
		t.Fatalf("target pos missing: %+v", a.Target)
	}
	if *a.Target.X != 1 || *a.Target.Y != 64 || *a.Target.Z != -3 {
		t.Fatalf("target pos mismatch")
	}
	if a.Target.BlockID != nil {
		t.Fatalf("blank blockId must be absent")
	}
	if a.Target.EntityName == nil || *a.Target.EntityName != "Alex" {
		t.Fatalf("entityName=%v", a.Target.EntityName)
	}

	a = mustParse(t, `{"view":"left"}`)
	if !a.View.IsZero() {
		t.Fatalf("non-object view should be empty")
	}
}

func TestParse_Mouse(t *testing.T) {
	cases := []struct {
		raw         string
		left, right PressKind
	}{
		{`{"mouse":"tap"}`, PressTap, PressNone},
		{`{"mouse":{"left":"HOLD","right":"release"}}`, PressHold, PressRelease},
		{`{"mouse":{"left":"SMASH"}}`, PressNone, PressNone},
		{`{"mouse":{"left":7}}`, PressNone, PressNone},
		{`{"mouse":null}`, PressNone, PressNone},
	}
	for _, tc := range cases {
		a := mustParse(t, tc.raw)
		if a.Mouse.Left != tc.left || a.Mouse.Right != tc.right {
			t.Fatalf("%s: mouse=%v/%v want %v/%v", tc.raw, a.Mouse.Left, a.Mouse.Right, tc.left, tc.right)
		}
	}
}

func TestParse_NonObjectRoot(t *testing.T) {
	if got := Parse([]any{"chat"}); !reflect.DeepEqual(got, None()) {
		t.Fatalf("array root should yield empty action: %+v", got)
	}
	if got := Parse(nil); !reflect.DeepEqual(got, None()) {
		t.Fatalf("nil root should yield empty action")
	}
}

func TestParseJSON_RecoversWrappedObject(t *testing.T) {
	raw := "Sure! Here you go:\n```json\n{\"chat\":\"on my way\",\"navigation\":{\"dx\":2}}\n```"
	a, err := ParseJSON([]byte(raw))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if msg, _ := a.Chat.Text(); msg != "on my way" {
		t.Fatalf("chat=%q", msg)
	}
	if a.Navigation.DXOrZero() != 2 {
		t.Fatalf("dx=%d", a.Navigation.DXOrZero())
	}

	if _, err := ParseJSON([]byte("no json here")); err != ErrNoJSON {
		t.Fatalf("err=%v want ErrNoJSON", err)
	}
}

func TestSummary_RoundTrip(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"chat":"hi","navigation":{"dx":"3"},"mouse":"HOLD"}`,
		`{"view":{"yawAbs":10,"pitchAbs":"-5.5"},"target":{}}`,
		`{"target":{"blockTag":"minecraft:logs","x":1},"mouse":{"right":"TAP"}}`,
	}
	for _, raw := range inputs {
		first := mustParse(t, raw)
		b, err := json.Marshal(Summary(first))
		if err != nil {
			t.Fatalf("marshal summary: %v", err)
		}
		second := mustParse(t, string(b))
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("round trip mismatch for %s:\nfirst=%+v\nsecond=%+v", raw, first, second)
		}
	}
}

func TestLint(t *testing.T) {
	good, _ := Decode([]byte(`{"chat":{"message":"hi"},"navigation":{"dx":1,"dy":null,"dz":0},"mouse":{"left":"TAP","right":"NONE"},"target":null}`))
	if errs := Lint(good); len(errs) != 0 {
		t.Fatalf("canonical document should lint clean: %v", errs)
	}
	loose, _ := Decode([]byte(`{"navigation":{"dx":"3"},"extra":true}`))
	if errs := Lint(loose); len(errs) == 0 {
		t.Fatalf("expected lint findings for string dx and extra key")
	}
	// Lint is advisory: the same document still parses.
	if a := Parse(loose); a.Navigation.DXOrZero() != 3 {
		t.Fatalf("loose document should still parse")
	}
}

package image

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func sample() *Image {
	return &Image{
		Version:         Version,
		Name:            "adapters/work/Task$$Adapter$0badf00d",
		Super:           "work.Task",
		Interfaces:      []string{"work.Runner"},
		SAM:             "run",
		AutoConvertible: true,
		Ctors: []Ctor{
			{Form: CtorMembers, Params: []string{"object<members>"}},
			{Form: CtorCallable, Params: []string{"object<callable>"}},
			{Form: CtorBridge, Params: []string{"object"}},
		},
		Methods: []Method{
			{Symbol: "run", Desc: "()void", Body: BodySAM, Abstract: true},
			{Symbol: "String", Desc: "()string", Body: BodyDescribe},
			{Symbol: `\=a\,b`, Desc: "(int32)int32", Body: BodyDispatch},
			{Symbol: SuperSymbol("String"), Desc: "()string", Body: BodySuper},
			{Symbol: FinalizerHelperSymbol, Desc: "()void", Body: BodyFinalizerHelper, Static: true},
			{Symbol: "Finalize", Desc: "()void", Body: BodyFinalizer},
		},
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	img := sample()
	data, err := Marshal(img)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, img) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, img)
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	a, err := Marshal(sample())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(sample())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal images encoded to different bytes")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Image)
	}{
		{"wrong version", func(img *Image) { img.Version = 99 }},
		{"missing name", func(img *Image) { img.Name = "" }},
		{"no constructors", func(img *Image) { img.Ctors = nil }},
		{"illegal symbol", func(img *Image) { img.Methods[2].Symbol = "a.b" }},
		{"super without prefix", func(img *Image) { img.Methods[3].Symbol = "String" }},
		{"helper not static", func(img *Image) { img.Methods[4].Static = false }},
		{"helper renamed", func(img *Image) { img.Methods[4].Symbol = "helper" }},
		{"unknown body", func(img *Image) { img.Methods[0].Body = 42 }},
		{"duplicate entry", func(img *Image) { img.Methods = append(img.Methods, img.Methods[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := sample()
			tt.mutate(img)
			if err := img.Validate(); !errors.Is(err, ErrMalformed) {
				t.Errorf("Validate = %v, want ErrMalformed", err)
			}
			if _, err := Marshal(img); err == nil {
				t.Error("Marshal accepted a malformed image")
			}
		})
	}
}

func TestUnmarshal_Garbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestBodyString(t *testing.T) {
	if got := BodyFinalizerHelper.String(); got != "finalizer-helper" {
		t.Errorf("String() = %q", got)
	}
	if got := Body(77).String(); got != "body(77)" {
		t.Errorf("String() = %q", got)
	}
	if got := CtorBridge.String(); got != "bridge" {
		t.Errorf("String() = %q", got)
	}
}

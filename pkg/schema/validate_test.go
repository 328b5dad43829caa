package schema

import (
	"errors"
	"testing"
)

func TestValidate_Success(t *testing.T) {
	fields := []Field{
		{Name: "selected_issue", Required: true, Schema: String()},
		{Name: "issue_intensity", Required: true, Schema: Integer().Between(0, 10)},
		{Name: "notes", Schema: String()},
	}

	data := map[string]any{
		"selected_issue":  "work stress",
		"issue_intensity": 7,
	}

	if err := Validate(fields, data); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	fields := []Field{
		{Name: "selected_issue", Required: true, Schema: String()},
		{Name: "issue_intensity", Required: true, Schema: Integer().Between(0, 10)},
	}

	data := map[string]any{
		"issue_intensity": 15,
		"mood":            "ok",
	}

	err := Validate(fields, data)
	if err == nil {
		t.Fatal("Validate() should return error")
	}

	errs := ValidationErrors(err)
	if len(errs) != 3 {
		t.Fatalf("Validate() = %d errors, want 3", len(errs))
	}

	wantKeys := []string{"selected_issue", "issue_intensity", "mood"}
	for i, e := range errs {
		var verr *ValidationError
		if !errors.As(e, &verr) {
			t.Fatalf("error %d should be *ValidationError, got %T", i, e)
		}
		if verr.Key != wantKeys[i] {
			t.Errorf("error %d Key = %q, want %q", i, verr.Key, wantKeys[i])
		}
	}
}

func TestValidate_EmptyFields(t *testing.T) {
	if err := Validate(nil, nil); err != nil {
		t.Errorf("Validate() with no fields and no data should return nil, got %v", err)
	}
	errs := ValidationErrors(Validate(nil, map[string]any{"a": 1}))
	if len(errs) != 1 {
		t.Fatalf("Validate() with no fields = %d errors, want 1", len(errs))
	}
}

func TestNormalizeField(t *testing.T) {
	v, verr := NormalizeField("suds_current", Integer().Between(0, 10), "4")
	if verr != nil {
		t.Fatalf("NormalizeField() error = %v", verr)
	}
	if v != int64(4) {
		t.Errorf("NormalizeField() = %v, want 4", v)
	}

	_, verr = NormalizeField("suds_current", Integer().Between(0, 10), 11)
	if verr == nil {
		t.Fatal("NormalizeField() should reject out of range value")
	}
	if verr.Key != "suds_current" {
		t.Errorf("Key = %q, want suds_current", verr.Key)
	}
}

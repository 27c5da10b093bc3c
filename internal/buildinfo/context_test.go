package buildinfo

import "testing"

func TestContext_GetVersion(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: "unknown"},
		{name: "empty version", ctx: &Context{}, want: "unknown"},
		{name: "valid version", ctx: &Context{Version: "1.0.0"}, want: "1.0.0"},
		{name: "version with pre-release tag", ctx: &Context{Version: "1.0.0-beta.1"}, want: "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.GetVersion(); got != tt.want {
				t.Errorf("GetVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_GetBuildDate(t *testing.T) {
	var nilCtx *Context
	if got := nilCtx.GetBuildDate(); got != "unknown" {
		t.Errorf("GetBuildDate() on nil context = %v, want unknown", got)
	}

	ctx := &Context{BuildDate: "2026-01-01"}
	if got := ctx.GetBuildDate(); got != "2026-01-01" {
		t.Errorf("GetBuildDate() = %v, want 2026-01-01", got)
	}
}

func TestContext_GetInstanceID(t *testing.T) {
	var nilCtx *Context
	if got := nilCtx.GetInstanceID(); got != "unknown" {
		t.Errorf("GetInstanceID() on nil context = %v, want unknown", got)
	}

	ctx := &Context{InstanceID: "engine-1"}
	if got := ctx.GetInstanceID(); got != "engine-1" {
		t.Errorf("GetInstanceID() = %v, want engine-1", got)
	}
}

func TestValidationResult_AddWarningAndError(t *testing.T) {
	r := NewValidationResult()
	if !r.Valid || r.HasIssues() {
		t.Fatalf("fresh result should be valid with no issues")
	}

	r.AddWarning("chunksize is unusually small")
	if !r.Valid || !r.HasIssues() {
		t.Fatalf("a warning alone should not invalidate the result")
	}

	r.AddError("unknown filter reference")
	if r.Valid {
		t.Fatalf("an error should invalidate the result")
	}
	if len(r.Warnings) != 1 || len(r.Errors) != 1 {
		t.Fatalf("expected 1 warning and 1 error, got %d/%d", len(r.Warnings), len(r.Errors))
	}
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("boom")).Build()

	assert.Equal(t, "boom", ee.Err.Error())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.NotEmpty(t, ee.GetComponent())
}

func TestBuild_ExplicitComponentAndCategory(t *testing.T) {
	t.Parallel()

	ee := New(nil).
		Component("dsp").
		Category(CategoryConfig).
		Context("filter", "lowpass").
		Build()

	assert.Equal(t, "dsp", ee.GetComponent())
	assert.Equal(t, CategoryConfig, ee.Category)
	assert.Equal(t, "lowpass", ee.GetContext()["filter"])
}

func TestBuild_NilErrUsesCategoryAsMessage(t *testing.T) {
	t.Parallel()

	ee := New(nil).Category(CategoryProcessing).Build()
	require.Error(t, ee)
	assert.Equal(t, string(CategoryProcessing), ee.Error())
}

func TestNewf(t *testing.T) {
	t.Parallel()

	ee := Newf("bad value %d", 42).Category(CategoryValidation).Build()
	assert.Equal(t, "bad value 42", ee.Error())
}

func TestContextIsolatedCopy(t *testing.T) {
	t.Parallel()

	ee := New(nil).Context("a", 1).Build()
	ctx := ee.GetContext()
	ctx["a"] = 2
	assert.Equal(t, 1, ee.GetContext()["a"], "mutating the returned context must not affect the error")
}

func TestIsMatchesUnderlyingSentinel(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	ee := New(sentinel).Build()
	assert.True(t, Is(ee, sentinel))
}

func TestErrorCategoryInterface(t *testing.T) {
	t.Parallel()

	var ce CategorizedError = New(nil).Category(CategoryDeviceFatal).Build()
	assert.Equal(t, CategoryDeviceFatal, ce.ErrorCategory())
}

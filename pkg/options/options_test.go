package options

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

type fakeOptions struct {
	errs      []error
	completed bool
}

func (f *fakeOptions) Validate() []error                       { return f.errs }
func (f *fakeOptions) AddFlags(_ *pflag.FlagSet, _ ...string) {}
func (f *fakeOptions) Complete() error {
	f.completed = true
	return nil
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "a.", Join("a"))
	assert.Equal(t, "a.b.", Join("a", "b"))
}

func TestValidateAllAndCompleteAll(t *testing.T) {
	a := &fakeOptions{errs: []error{errors.New("a")}}
	b := &fakeOptions{errs: []error{errors.New("b1"), errors.New("b2")}}

	assert.Len(t, ValidateAll(a, nil, b), 3)
	assert.NoError(t, CompleteAll(a, b))
	assert.True(t, a.completed)
	assert.True(t, b.completed)
}

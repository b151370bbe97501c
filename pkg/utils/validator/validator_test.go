package validator

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queryForm struct {
	Question    string   `json:"question" validate:"notblank,max=20"`
	DocumentIDs []string `json:"document_ids" validate:"max=3,dive,docid"`
	TopK        int      `json:"top_k" validate:"gte=0,lte=50"`
}

func TestNew(t *testing.T) {
	v := New()
	require.NotNil(t, v.Engine())
	assert.Len(t, v.trans, 2)
	assert.NotNil(t, v.GetTranslator(LangEN))
	assert.NotNil(t, v.GetTranslator("zh-CN"))
}

func TestGlobal(t *testing.T) {
	original := Global()
	t.Cleanup(func() { SetGlobal(original) })

	custom := New()
	SetGlobal(custom)
	assert.Same(t, custom, Global())
}

func TestValidate(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		input  queryForm
		fields []string
	}{
		{"valid", queryForm{Question: "what is alpha", DocumentIDs: []string{"a", "b"}, TopK: 5}, nil},
		{"blank question", queryForm{Question: "   "}, []string{"question"}},
		{"question too long", queryForm{Question: strings.Repeat("q", 21)}, []string{"question"}},
		{"bad document id", queryForm{Question: "q", DocumentIDs: []string{"a b"}}, []string{"document_ids[0]"}},
		{"too many documents", queryForm{Question: "q", DocumentIDs: []string{"a", "b", "c", "d"}}, []string{"document_ids"}},
		{"top_k out of range", queryForm{Question: "q", TopK: 51}, []string{"top_k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.ValidateWithLang(tt.input, LangEN)
			if tt.fields == nil {
				assert.Nil(t, errs)
				assert.NoError(t, v.Validate(tt.input))
				return
			}
			require.NotNil(t, errs)
			assert.True(t, errs.HasErrors())
			var got []string
			for _, fe := range errs.Errors {
				got = append(got, fe.Field)
			}
			assert.Equal(t, tt.fields, got)
			assert.Contains(t, errs.Error(), "validation failed: ")
		})
	}
}

func TestValidateWithLang(t *testing.T) {
	v := New()
	input := queryForm{Question: " "}

	en := v.ValidateWithLang(input, LangEN)
	require.NotNil(t, en)
	assert.Equal(t, "question must not be blank", en.First())

	zh := v.ValidateWithLang(input, LangZH)
	require.NotNil(t, zh)
	assert.Equal(t, "question不能为空", zh.First())
	assert.Equal(t, map[string][]string{"question": {"question不能为空"}}, zh.ToMap())
}

func TestDocumentIDRule(t *testing.T) {
	v := New()
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"report-2024.pdf", false},
		{"8f14e45fceea167a5a36dedd4bea2543", false},
		{"has space", true},
		{"dir/file", true},
		{"tab\there", true},
		{strings.Repeat("x", 128), false},
		{strings.Repeat("x", 129), true},
		{"\x01ctrl", true},
	}
	for _, tt := range tests {
		err := v.ValidateVar(tt.value, TagDocumentID)
		assert.Equal(t, tt.wantErr, err != nil, "value %q", tt.value)
	}
}

func TestWhitespaceRules(t *testing.T) {
	v := New()
	assert.NoError(t, v.ValidateVar("abc", TagNoWhitespace))
	assert.Error(t, v.ValidateVar("a c", TagNoWhitespace))
	assert.NoError(t, v.ValidateVar("a c", TagTrimmed))
	assert.Error(t, v.ValidateVar(" ac", TagTrimmed))
}

func TestValidationErrorsNil(t *testing.T) {
	var errs *ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, 0, errs.Count())
	assert.Equal(t, "", errs.First())
	assert.Equal(t, "", errs.Error())
	assert.Empty(t, errs.ToMap())

	errs = NewValidationErrors(
		NewValidationError("question", "required", "question is required"),
		NewValidationError("top_k", "lte", "top_k must be 50 or less"),
	)
	assert.Equal(t, 2, errs.Count())
	assert.Equal(t, "validation failed: question is required; top_k must be 50 or less", errs.Error())
}

func TestConcurrentValidation(t *testing.T) {
	v := New()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input := queryForm{Question: "q", TopK: i}
			assert.NoError(t, v.Validate(input))
		}()
	}
	wg.Wait()
}

package errors

import (
	stdliberrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(ErrCodeCorrespondence, "atom counts differ")
	assert.Equal(t, ErrCodeCorrespondence, err.Code)
	assert.Contains(t, err.Error(), "PIPE_002")
	assert.Contains(t, err.Error(), "atom counts differ")
	assert.NotEmpty(t, err.Stack)
}

func TestWrapPreservesChain(t *testing.T) {
	inner := stdliberrors.New("connection refused")
	wrapped := Wrap(inner, ErrCodeDatabaseError, "failed to load records")
	require.NotNil(t, wrapped)
	assert.True(t, stdliberrors.Is(wrapped, inner))
	assert.Equal(t, ErrCodeDatabaseError, GetCode(wrapped))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
}

func TestWrapUnknownKeepsOriginalCode(t *testing.T) {
	orig := Encoding("element Xx not in vocabulary")
	wrapped := Wrap(orig, ErrCodeUnknown, "encode stage")
	assert.Equal(t, ErrCodeEncoding, wrapped.Code)
}

func TestWithDetailDoesNotMutateReceiver(t *testing.T) {
	base := SkippedSite("missing variant")
	detailed := base.WithDetail("mol=CHEMBL1234 site=2")
	assert.Empty(t, base.Detail)
	assert.Contains(t, detailed.Error(), "site=2")
}

func TestIsRecordReject(t *testing.T) {
	assert.True(t, IsRecordReject(SkippedSite("x")))
	assert.True(t, IsRecordReject(Correspondence("x")))
	assert.True(t, IsRecordReject(Encoding("x")))
	assert.False(t, IsRecordReject(Integrity("x")))
	assert.False(t, IsRecordReject(stdliberrors.New("plain")))
}

func TestIsCodeTraversesChain(t *testing.T) {
	inner := Correspondence("ambiguous bijection")
	outer := Wrap(inner, ErrCodeInternal, "normalizer stage")
	assert.True(t, IsCode(outer, ErrCodeCorrespondence))
	assert.False(t, IsCode(outer, ErrCodeEncoding))
}

func TestGetCodeFallbacks(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, ErrCodeUnknown, GetCode(stdliberrors.New("plain")))
}

func TestHTTPStatusForCode(t *testing.T) {
	assert.Equal(t, 422, HTTPStatusForCode(ErrCodeSkippedSite))
	assert.Equal(t, 404, HTTPStatusForCode(ErrCodeDatasetNotFound))
	assert.Equal(t, 500, HTTPStatusForCode(ErrorCode("BOGUS_999")))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "PIPE", ModuleForCode(ErrCodeIntegrity))
	assert.Equal(t, "DS", ModuleForCode(ErrCodeDatasetCorrupt))
}

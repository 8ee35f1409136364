package azurite

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindContainerNotFound, Detail: "photos"}, "container 'photos' not found"},
		{&Error{Kind: KindBlobNotFound, Detail: "cat.jpg"}, "blob 'cat.jpg' not found"},
		{&Error{Kind: KindUnauthorized}, "unauthorized access"},
		{&Error{Kind: KindInternal, Detail: "boom"}, "internal error: boom"},
		{&Error{Kind: KindRuntimeCreationFailed}, "failed to create execution context"},
		{&Error{Kind: KindInvalidParameter, Detail: "x"}, "invalid parameter: x"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", internalf(io.ErrUnexpectedEOF, "list blobs in container %q", "c"))

	assert.True(t, errors.Is(err, ErrInternal))
	assert.False(t, errors.Is(err, ErrContainerNotFound))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
	assert.Contains(t, err.Error(), `list blobs in container "c": unexpected EOF`)
}

func TestDescribeResponseError(t *testing.T) {
	err := fmt.Errorf("create: %w", &azcore.ResponseError{StatusCode: 409, ErrorCode: "ContainerAlreadyExists"})
	assert.Equal(t, "409 ContainerAlreadyExists", describe(err))

	err = &azcore.ResponseError{StatusCode: 503}
	assert.Equal(t, "503 Service Unavailable", describe(err))
}

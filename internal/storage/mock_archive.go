package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockArchive is a testify mock of Archive.
type MockArchive struct {
	mock.Mock
}

// PutObject records the call; the reader is drained into a string argument.
func (m *MockArchive) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	args := m.Called(ctx, path, contentType, string(raw))
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// Close records the call.
func (m *MockArchive) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}

package mocks

import (
	"context"
	"io"

	"github.com/brettbedarf/kfs"
	"github.com/stretchr/testify/mock"
)

// MockContentSource implements kfs.ContentSource for testing across packages
type MockContentSource struct {
	mock.Mock
}

func (m *MockContentSource) Open(ctx context.Context) (io.ReadCloser, error) {
	args := m.Called(ctx)

	// Handle function return types so each call can get a fresh reader
	if fn, ok := args.Get(0).(func(context.Context) io.ReadCloser); ok {
		return fn(ctx), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockContentSource) Size(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

var _ kfs.ContentSource = (*MockContentSource)(nil)

// MockSourceProvider implements kfs.SourceProvider for testing across packages
type MockSourceProvider struct {
	mock.Mock
}

func (m *MockSourceProvider) NewSource(raw []byte) (kfs.ContentSource, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(kfs.ContentSource), args.Error(1)
}

var _ kfs.SourceProvider = (*MockSourceProvider)(nil)

// Package mocks provides test doubles for the provider package.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/realty-ai/internal/model"
	provider "github.com/sells-group/realty-ai/internal/provider"
)

// MockProvider is a mock type for the Provider interface.
type MockProvider struct {
	mock.Mock
}

// Kind provides a mock function with given fields:
func (_m *MockProvider) Kind() model.ProviderKind {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Kind")
	}

	var r0 model.ProviderKind
	if rf, ok := ret.Get(0).(func() model.ProviderKind); ok {
		r0 = rf()
	} else {
		r0 = ret.Get(0).(model.ProviderKind)
	}

	return r0
}

// Complete provides a mock function with given fields: ctx, system, user
func (_m *MockProvider) Complete(ctx context.Context, system string, user string) (*provider.Completion, error) {
	ret := _m.Called(ctx, system, user)

	if len(ret) == 0 {
		panic("no return value specified for Complete")
	}

	var r0 *provider.Completion
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, string) (*provider.Completion, error)); ok {
		return rf(ctx, system, user)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, string) *provider.Completion); ok {
		r0 = rf(ctx, system, user)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*provider.Completion)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, string) error); ok {
		r1 = rf(ctx, system, user)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockProvider creates a new instance of MockProvider.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	mock := &MockProvider{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

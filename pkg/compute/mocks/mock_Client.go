// Package mocks provides test doubles for the compute client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	"github.com/dgketchum/openet-ptjpl/internal/graph"
	compute "github.com/dgketchum/openet-ptjpl/pkg/compute"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// CollectionInfo provides a mock function with given fields: ctx, c
func (_m *MockClient) CollectionInfo(ctx context.Context, c graph.Collection) (*compute.CollectionInfo, error) {
	ret := _m.Called(ctx, c)

	if len(ret) == 0 {
		panic("no return value specified for CollectionInfo")
	}

	var r0 *compute.CollectionInfo
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, graph.Collection) (*compute.CollectionInfo, error)); ok {
		return rf(ctx, c)
	}
	if rf, ok := ret.Get(0).(func(context.Context, graph.Collection) *compute.CollectionInfo); ok {
		r0 = rf(ctx, c)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*compute.CollectionInfo)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, graph.Collection) error); ok {
		r1 = rf(ctx, c)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// ImageInfo provides a mock function with given fields: ctx, img
func (_m *MockClient) ImageInfo(ctx context.Context, img graph.Image) (*compute.ImageInfo, error) {
	ret := _m.Called(ctx, img)

	if len(ret) == 0 {
		panic("no return value specified for ImageInfo")
	}

	var r0 *compute.ImageInfo
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, graph.Image) (*compute.ImageInfo, error)); ok {
		return rf(ctx, img)
	}
	if rf, ok := ret.Get(0).(func(context.Context, graph.Image) *compute.ImageInfo); ok {
		r0 = rf(ctx, img)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*compute.ImageInfo)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, graph.Image) error); ok {
		r1 = rf(ctx, img)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// StartExport provides a mock function with given fields: ctx, req
func (_m *MockClient) StartExport(ctx context.Context, req compute.ExportRequest) (*compute.Task, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for StartExport")
	}

	var r0 *compute.Task
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, compute.ExportRequest) (*compute.Task, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, compute.ExportRequest) *compute.Task); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*compute.Task)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, compute.ExportRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}

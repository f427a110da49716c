package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func NewMockPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPublisher {
	m := &MockPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, message interface{}) error {
	args := m.Called(ctx, topic, message)
	return args.Error(0)
}

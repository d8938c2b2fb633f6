package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, to, body string) error {
	args := m.Called(to, body)
	return args.Error(0)
}

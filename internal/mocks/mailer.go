package mocks

import "github.com/stretchr/testify/mock"

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(recipient string, data any, patterns ...string) error {
	args := m.Called(recipient, data, patterns)
	return args.Error(0)
}

// ExpectTemplate sets up a single successful send of template to recipient whose
// data satisfies match. A nil match accepts any data.
func (m *MockMailer) ExpectTemplate(recipient, template string, match func(map[string]any) bool) *mock.Call {
	var data any = mock.Anything
	if match != nil {
		data = mock.MatchedBy(match)
	}

	return m.On("Send", recipient, data, []string{template}).Return(nil).Once()
}

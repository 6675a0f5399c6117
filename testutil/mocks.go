package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/sweater-ventures/psph/app"
)

// MockFetcher is a testify mock implementing app.Fetcher.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, id app.ListID) ([]string, error) {
	args := m.Called(ctx, id)
	list, _ := args.Get(0).([]string)
	return list, args.Error(1)
}

// OnFetch sets up an expectation for one list, any context.
func (m *MockFetcher) OnFetch(id app.ListID) *mock.Call {
	return m.On("Fetch", mock.Anything, id)
}

// MockEmailSender is a testify mock implementing app.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, msg app.EmailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

// Sent returns the messages passed to Send, in order.
func (m *MockEmailSender) Sent() []app.EmailMessage {
	var out []app.EmailMessage
	for _, call := range m.Calls {
		if call.Method == "Send" {
			out = append(out, call.Arguments.Get(1).(app.EmailMessage))
		}
	}
	return out
}

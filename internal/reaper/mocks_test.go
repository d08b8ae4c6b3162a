package reaper

import (
	"github.com/stretchr/testify/mock"
)

// MockSessionSource mocks the SessionSource interface.
type MockSessionSource struct {
	mock.Mock
}

func (m *MockSessionSource) HealthSnapshot() []HealthEntry {
	args := m.Called()
	if entries := args.Get(0); entries != nil {
		return entries.([]HealthEntry)
	}
	return nil
}

func (m *MockSessionSource) MarkCrashed(id string, message string) error {
	args := m.Called(id, message)
	return args.Error(0)
}

package configprocessor

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLogger records calls for expectation-based tests.
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(msg string, args ...any) { m.Called(msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.Called(msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.Called(msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.Called(msg, args) }

func TestLogger_SlogSatisfiesInterface(t *testing.T) {
	var buf bytes.Buffer
	var logger Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	p, err := New(WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, p.RegisterObserver(NewFunctionalObserver("x", nil)))
	assert.Contains(t, buf.String(), "Observer registered")
	assert.Contains(t, buf.String(), "observerID=x")
}

func TestLogger_MockExpectations(t *testing.T) {
	logger := &MockLogger{}
	logger.On("Debug", "Observer registered", mock.Anything).Return().Once()
	logger.On("Debug", "Observer unregistered", mock.Anything).Return().Once()

	p, err := New(WithLogger(logger))
	require.NoError(t, err)
	obs := NewFunctionalObserver("m", nil)
	require.NoError(t, p.RegisterObserver(obs))
	require.NoError(t, p.UnregisterObserver(obs))
	logger.AssertExpectations(t)
}

func TestNoopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		var l Logger = NoopLogger{}
		l.Info("i")
		l.Warn("w")
		l.Error("e", "k", 1)
		l.Debug("d")
	})
}

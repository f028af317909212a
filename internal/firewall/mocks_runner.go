package firewall

import (
	"github.com/stretchr/testify/mock"
)

// MockCommandRunner records expected tool invocations for tests. Each
// argv element is passed to testify as its own matcher so expectations
// read like the command line they stand in for.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(name string, args ...string) error {
	return m.Called(flatten(name, args)...).Error(0)
}

func (m *MockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	res := m.Called(flatten(name, args)...)
	out, _ := res.Get(0).([]byte)
	return out, res.Error(1)
}

func flatten(name string, args []string) []interface{} {
	argv := make([]interface{}, 0, len(args)+1)
	argv = append(argv, name)
	for _, a := range args {
		argv = append(argv, a)
	}
	return argv
}

// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pagecraft/internal/config"
	"github.com/xkilldash9x/pagecraft/pkg/driver"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Driver() config.DriverConfig {
	args := m.Called()
	return args.Get(0).(config.DriverConfig)
}

func (m *MockConfig) Timeouts() config.TimeoutsConfig {
	args := m.Called()
	return args.Get(0).(config.TimeoutsConfig)
}

func (m *MockConfig) Registry() config.RegistryConfig {
	args := m.Called()
	return args.Get(0).(config.RegistryConfig)
}

// -- Driver Mocks --

// MockDriver mocks driver.Driver.
type MockDriver struct {
	mock.Mock
}

var _ driver.Driver = (*MockDriver)(nil)

func (m *MockDriver) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	args := m.Called(ctx, by, value)
	el, _ := args.Get(0).(driver.Element)
	return el, args.Error(1)
}

func (m *MockDriver) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	args := m.Called(ctx, by, value)
	els, _ := args.Get(0).([]driver.Element)
	return els, args.Error(1)
}

func (m *MockDriver) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockDriver) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDriver) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockElement mocks driver.Element. It also satisfies driver.Searcher so
// components built on it search its subtree.
type MockElement struct {
	mock.Mock
}

var (
	_ driver.Element  = (*MockElement)(nil)
	_ driver.Searcher = (*MockElement)(nil)
)

func (m *MockElement) Click(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockElement) SendKeys(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockElement) Text(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockElement) IsDisplayed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockElement) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockElement) FindElement(ctx context.Context, by driver.By, value string) (driver.Element, error) {
	args := m.Called(ctx, by, value)
	el, _ := args.Get(0).(driver.Element)
	return el, args.Error(1)
}

func (m *MockElement) FindElements(ctx context.Context, by driver.By, value string) ([]driver.Element, error) {
	args := m.Called(ctx, by, value)
	els, _ := args.Get(0).([]driver.Element)
	return els, args.Error(1)
}

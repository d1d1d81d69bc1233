package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/matref/property-cli/internal/deploy"
	"github.com/matref/property-cli/internal/model"
	"github.com/matref/property-cli/internal/monitoring"
	"github.com/matref/property-cli/internal/research"
)

type mockResearcher struct {
	mock.Mock
}

func (m *mockResearcher) Research(ctx context.Context, material, category, property string) (*research.Finding, error) {
	args := m.Called(ctx, material, category, property)
	if f := args.Get(0); f != nil {
		return f.(*research.Finding), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDeployer struct {
	mock.Mock
}

func (m *mockDeployer) CreateBackup(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockDeployer) DeployToStaging(ctx context.Context, records []model.PropertyRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockDeployer) RunIntegrationTests(ctx context.Context, records []model.PropertyRecord) (*deploy.TestReport, error) {
	args := m.Called(ctx, records)
	if r := args.Get(0); r != nil {
		return r.(*deploy.TestReport), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDeployer) DeployToProduction(ctx context.Context, records []model.PropertyRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockDeployer) Rollback(ctx context.Context, backupHandle string) error {
	args := m.Called(ctx, backupHandle)
	return args.Error(0)
}

type mockMonitor struct {
	mock.Mock
}

func (m *mockMonitor) Setup(ctx context.Context, records []model.PropertyRecord) (*monitoring.SetupReport, error) {
	args := m.Called(ctx, records)
	if r := args.Get(0); r != nil {
		return r.(*monitoring.SetupReport), args.Error(1)
	}
	return nil, args.Error(1)
}

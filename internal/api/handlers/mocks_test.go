package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shopops/portal/internal/models"
	"shopops/portal/internal/payments"
	"shopops/portal/internal/services"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserService) CreateUser(ctx context.Context, in services.CreateUserInput) (*models.User, error) {
	return m.user(m.Called(ctx, in))
}
func (m *MockUserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	return m.user(m.Called(ctx, username, password))
}
func (m *MockUserService) FindByID(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return m.user(m.Called(ctx, userID))
}
func (m *MockUserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.user(m.Called(ctx, username))
}
func (m *MockUserService) ListUsers(ctx context.Context, includeInactive bool) ([]models.User, error) {
	args := m.Called(ctx, includeInactive)
	return args.Get(0).([]models.User), args.Error(1)
}

// MockTaskService
type MockTaskService struct {
	mock.Mock
}

func (m *MockTaskService) task(args mock.Arguments) (*models.Task, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockTaskService) CreateTask(ctx context.Context, in services.CreateTaskInput) (*models.Task, error) {
	return m.task(m.Called(ctx, in))
}
func (m *MockTaskService) GetTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID))
}
func (m *MockTaskService) ListTasks(ctx context.Context, filter services.TaskFilter) ([]models.Task, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Task), args.Error(1)
}
func (m *MockTaskService) AssignTask(ctx context.Context, taskID, assigneeID primitive.ObjectID) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID, assigneeID))
}
func (m *MockTaskService) UpdateStatus(ctx context.Context, taskID primitive.ObjectID, status models.TaskStatus) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID, status))
}
func (m *MockTaskService) UpdateCharges(ctx context.Context, taskID primitive.ObjectID, finalCharges float64) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID, finalCharges))
}
func (m *MockTaskService) AddPayment(ctx context.Context, taskID primitive.ObjectID, req payments.Request) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID, req))
}
func (m *MockTaskService) DeleteTask(ctx context.Context, taskID primitive.ObjectID, deletedBy *primitive.ObjectID) error {
	return m.Called(ctx, taskID, deletedBy).Error(0)
}
func (m *MockTaskService) ListDeletedTasks(ctx context.Context, limit int64) ([]models.DeletedTask, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.DeletedTask), args.Error(1)
}
func (m *MockTaskService) RestoreTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID))
}
func (m *MockTaskService) AttachDocument(ctx context.Context, taskID primitive.ObjectID, doc models.TaskDocument) (*models.Task, error) {
	return m.task(m.Called(ctx, taskID, doc))
}
func (m *MockTaskService) MarkDocumentProcessed(ctx context.Context, taskID primitive.ObjectID, key string) error {
	return m.Called(ctx, taskID, key).Error(0)
}
func (m *MockTaskService) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockClientService
type MockClientService struct {
	mock.Mock
}

func (m *MockClientService) client(args mock.Arguments) (*models.Client, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockClientService) CreateClient(ctx context.Context, in services.ClientInput) (*models.Client, error) {
	return m.client(m.Called(ctx, in))
}
func (m *MockClientService) GetClient(ctx context.Context, clientID primitive.ObjectID) (*models.Client, error) {
	return m.client(m.Called(ctx, clientID))
}
func (m *MockClientService) ListClients(ctx context.Context, query string, limit int64) ([]models.Client, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]models.Client), args.Error(1)
}
func (m *MockClientService) UpdateClient(ctx context.Context, clientID primitive.ObjectID, in services.ClientInput) (*models.Client, error) {
	return m.client(m.Called(ctx, clientID, in))
}
func (m *MockClientService) DeleteClient(ctx context.Context, clientID primitive.ObjectID) error {
	return m.Called(ctx, clientID).Error(0)
}

// MockLedgerService
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreateSalesEntry(ctx context.Context, in services.SalesEntryInput) (*models.SalesEntry, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesEntry), args.Error(1)
}
func (m *MockLedgerService) ListSalesEntries(ctx context.Context, r services.DateRange, department string) ([]models.SalesEntry, error) {
	args := m.Called(ctx, r, department)
	return args.Get(0).([]models.SalesEntry), args.Error(1)
}
func (m *MockLedgerService) CreateExpense(ctx context.Context, in services.ExpenseInput) (*models.Expense, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Expense), args.Error(1)
}
func (m *MockLedgerService) ListExpenses(ctx context.Context, r services.DateRange) ([]models.Expense, error) {
	args := m.Called(ctx, r)
	return args.Get(0).([]models.Expense), args.Error(1)
}

// MockReportService
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) TasksSummary(ctx context.Context, r services.DateRange) (*models.TasksSummary, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TasksSummary), args.Error(1)
}
func (m *MockReportService) ProfitExpenses(ctx context.Context, r services.DateRange) (*models.ProfitExpenses, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProfitExpenses), args.Error(1)
}
func (m *MockReportService) SalesRanking(ctx context.Context, r services.DateRange) (*models.SalesRanking, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SalesRanking), args.Error(1)
}
func (m *MockReportService) Dashboard(ctx context.Context, r services.DateRange) (*models.Dashboard, error) {
	args := m.Called(ctx, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dashboard), args.Error(1)
}

// MockPresenceService
type MockPresenceService struct {
	mock.Mock
}

func (m *MockPresenceService) Heartbeat(ctx context.Context, p models.Presence) error {
	return m.Called(ctx, p).Error(0)
}
func (m *MockPresenceService) Online(ctx context.Context) ([]models.Presence, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Presence), args.Error(1)
}

// MockStorage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GeneratePresignedPutURL(ctx context.Context, taskID, filename, contentType string) (string, string, error) {
	args := m.Called(ctx, taskID, filename, contentType)
	return args.String(0), args.String(1), args.Error(2)
}
func (m *MockStorage) GetObject(ctx context.Context, key string, maxBytes int64) ([]byte, string, error) {
	args := m.Called(ctx, key, maxBytes)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}
func (m *MockStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

// MockAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

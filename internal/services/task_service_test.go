package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"shopops/portal/internal/db"
	"shopops/portal/internal/models"
	"shopops/portal/internal/payments"
	"shopops/portal/internal/utils"
)

type TaskServiceSuite struct {
	suite.Suite
	ctx      context.Context
	db       *mongo.Database
	loc      *time.Location
	clock    time.Time
	users    IUserService
	service  *taskService
	assignee *models.User
}

func TestTaskServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	suite.Run(t, new(TaskServiceSuite))
}

func (s *TaskServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = utils.SetupTestDB(s.T())
	s.Require().NoError(db.EnsureIndexes(s.ctx, s.db))

	var err error
	s.loc, err = time.LoadLocation("Asia/Kolkata")
	s.Require().NoError(err)
	// 15:00 IST on 18 Oct 2026
	s.clock = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	s.users = NewUserService(s.db)
	s.service = NewTaskService(s.db, s.users, s.loc, 10, nil).(*taskService)
	s.service.now = func() time.Time { return s.clock }

	s.assignee, err = s.users.CreateUser(s.ctx, CreateUserInput{Name: "Ravi", Username: "ravi", Password: "secret1"})
	s.Require().NoError(err)
}

func (s *TaskServiceSuite) newTask(finalCharges float64) *models.Task {
	task, err := s.service.CreateTask(s.ctx, CreateTaskInput{
		ServiceName:  "Passport",
		CustomerName: "Kiran",
		FinalCharges: finalCharges,
	})
	s.Require().NoError(err)
	return task
}

func (s *TaskServiceSuite) TestCreateTask_SerialNumbersPerShopDay() {
	first := s.newTask(100)
	second := s.newTask(100)
	s.Equal("20261018-001", first.SerialNumber)
	s.Equal("20261018-002", second.SerialNumber)
	s.Equal(models.TaskStatusPending, first.Status)
	s.Equal(100.0, first.UnpaidAmount)
	s.Equal(0, first.Version)

	// Deleted tasks still hold their numbers.
	s.Require().NoError(s.service.DeleteTask(s.ctx, second.ID, nil))
	third := s.newTask(100)
	s.Equal("20261018-003", third.SerialNumber)

	// 00:30 IST on the 19th is still the 18th in UTC.
	s.clock = time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC)
	next := s.newTask(100)
	s.Equal("20261019-001", next.SerialNumber)
}

func (s *TaskServiceSuite) TestCreateTask_ConcurrentSerialsAreUnique() {
	const n = 4
	serials := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := s.service.CreateTask(s.ctx, CreateTaskInput{ServiceName: "Print", CustomerName: "Walk-in"})
			if err == nil {
				serials <- task.SerialNumber
			}
		}()
	}
	wg.Wait()
	close(serials)

	seen := map[string]bool{}
	for serial := range serials {
		s.False(seen[serial], "duplicate serial %s", serial)
		seen[serial] = true
	}
	s.Len(seen, n)
}

func (s *TaskServiceSuite) TestCreateTask_Validation() {
	_, err := s.service.CreateTask(s.ctx, CreateTaskInput{CustomerName: "Kiran"})
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("serviceName", verr.Field)

	unknown := primitive.NewObjectID()
	_, err = s.service.CreateTask(s.ctx, CreateTaskInput{ServiceName: "PAN", CustomerName: "Kiran", AssignedTo: &unknown})
	s.Require().ErrorAs(err, &verr)
	s.Equal("assignedTo", verr.Field)

	_, err = s.service.CreateTask(s.ctx, CreateTaskInput{
		ServiceName: "PAN", CustomerName: "Kiran", FinalCharges: 50,
		InitialPayment: &payments.Request{Amount: 80, Mode: models.PaymentModeCash},
	})
	var exceeds *payments.ExceedsUnpaidError
	s.ErrorAs(err, &exceeds)

	count, err := s.db.Collection(db.TasksCollection).CountDocuments(s.ctx, bson.M{})
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *TaskServiceSuite) TestCreateTask_AssignedWithInitialPayment() {
	task, err := s.service.CreateTask(s.ctx, CreateTaskInput{
		ServiceName:    "Aadhaar update",
		CustomerName:   "Meena",
		AssignedTo:     &s.assignee.ID,
		FinalCharges:   250,
		InitialPayment: &payments.Request{Amount: 100, Mode: models.PaymentModeShopQR},
	})
	s.Require().NoError(err)
	s.Equal(models.TaskStatusAssigned, task.Status)
	s.Equal("Ravi", task.AssignedToName)
	s.Equal(100.0, task.AmountCollected)
	s.Equal(150.0, task.UnpaidAmount)
	s.Require().Len(task.PaymentHistory, 1)
	s.True(task.PaymentHistory[0].IsInitialPayment)

	stored, err := s.service.GetTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(task.SerialNumber, stored.SerialNumber)
	s.Equal(models.PaymentModeShopQR, stored.PaymentMode)
}

func (s *TaskServiceSuite) TestAddPayment() {
	task := s.newTask(100)

	updated, err := s.service.AddPayment(s.ctx, task.ID, payments.Request{Amount: 40, Mode: models.PaymentModeCash, RequestID: "req-1"})
	s.Require().NoError(err)
	s.Equal(40.0, updated.AmountCollected)
	s.Equal(60.0, updated.UnpaidAmount)
	s.Equal(1, updated.Version)

	_, err = s.service.AddPayment(s.ctx, task.ID, payments.Request{Amount: 150, Mode: models.PaymentModeCash})
	var exceeds *payments.ExceedsUnpaidError
	s.Require().ErrorAs(err, &exceeds)
	s.Equal("60", exceeds.Unpaid.String())

	// Resubmitting the same request is a no-op.
	again, err := s.service.AddPayment(s.ctx, task.ID, payments.Request{Amount: 40, Mode: models.PaymentModeCash, RequestID: "req-1"})
	s.Require().NoError(err)
	s.Equal(40.0, again.AmountCollected)

	stored, err := s.service.GetTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(40.0, stored.AmountCollected)
	s.Equal(60.0, stored.UnpaidAmount)
	s.Len(stored.PaymentHistory, 1)
	s.Equal(1, stored.Version)

	_, err = s.service.AddPayment(s.ctx, primitive.NewObjectID(), payments.Request{Amount: 1, Mode: models.PaymentModeCash})
	s.ErrorIs(err, ErrNotFound)
}

func (s *TaskServiceSuite) TestAddPayment_ConcurrentPaymentsAllApply() {
	task := s.newTask(100)

	const n = 5
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.AddPayment(s.ctx, task.ID, payments.Request{Amount: 10, Mode: models.PaymentModeCash})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	stored, err := s.service.GetTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(50.0, stored.AmountCollected)
	s.Equal(50.0, stored.UnpaidAmount)
	s.Len(stored.PaymentHistory, n)
	s.Equal(n, stored.Version)
}

func (s *TaskServiceSuite) TestMutate_GivesUpAfterRetries() {
	task := s.newTask(100)
	service := NewTaskService(s.db, s.users, s.loc, 2, nil).(*taskService)

	attempts := 0
	_, err := service.mutate(s.ctx, task.ID, func(t *models.Task) (bson.M, error) {
		attempts++
		// Another writer bumps the version between read and write.
		_, err := s.db.Collection(db.TasksCollection).UpdateOne(s.ctx, bson.M{"_id": t.ID}, bson.M{"$inc": bson.M{"version": 1}})
		s.Require().NoError(err)
		return bson.M{"remarks": "lost"}, nil
	})
	s.ErrorIs(err, ErrVersionConflict)
	s.Equal(3, attempts)
}

func (s *TaskServiceSuite) TestStatusTransitions() {
	task := s.newTask(100)

	_, err := s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusOngoing)
	s.ErrorIs(err, ErrInvalidTransition)

	assigned, err := s.service.AssignTask(s.ctx, task.ID, s.assignee.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusAssigned, assigned.Status)

	ongoing, err := s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusOngoing)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusOngoing, ongoing.Status)

	// Reassigning keeps the task ongoing.
	reassigned, err := s.service.AssignTask(s.ctx, task.ID, s.assignee.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusOngoing, reassigned.Status)

	completed, err := s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusCompleted)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCompleted, completed.Status)

	_, err = s.service.AssignTask(s.ctx, task.ID, s.assignee.ID)
	s.ErrorIs(err, ErrInvalidTransition)
	_, err = s.service.UpdateStatus(s.ctx, task.ID, models.TaskStatusPending)
	s.ErrorIs(err, ErrInvalidTransition)

	_, err = s.service.UpdateStatus(s.ctx, task.ID, "archived")
	var verr *ValidationError
	s.ErrorAs(err, &verr)
}

func (s *TaskServiceSuite) TestUpdateCharges() {
	task := s.newTask(100)
	_, err := s.service.AddPayment(s.ctx, task.ID, payments.Request{Amount: 40, Mode: models.PaymentModeCash})
	s.Require().NoError(err)

	updated, err := s.service.UpdateCharges(s.ctx, task.ID, 120)
	s.Require().NoError(err)
	s.Equal(120.0, updated.FinalCharges)
	s.Equal(80.0, updated.UnpaidAmount)

	_, err = s.service.UpdateCharges(s.ctx, task.ID, 30)
	s.ErrorIs(err, payments.ErrChargesBelowCollected)
}

func (s *TaskServiceSuite) TestDeleteRestoreAndPurge() {
	task := s.newTask(100)
	_, err := s.service.AddPayment(s.ctx, task.ID, payments.Request{Amount: 25, Mode: models.PaymentModeOther})
	s.Require().NoError(err)

	deletedBy := s.assignee.ID
	s.Require().NoError(s.service.DeleteTask(s.ctx, task.ID, &deletedBy))

	_, err = s.service.GetTask(s.ctx, task.ID)
	s.ErrorIs(err, ErrNotFound)
	s.ErrorIs(s.service.DeleteTask(s.ctx, task.ID, nil), ErrNotFound)

	deleted, err := s.service.ListDeletedTasks(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(deleted, 1)
	s.Equal(task.SerialNumber, deleted[0].SerialNumber)
	s.Equal(&deletedBy, deleted[0].DeletedBy)

	restored, err := s.service.RestoreTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(25.0, restored.AmountCollected)
	s.Equal(task.SerialNumber, restored.SerialNumber)

	_, err = s.service.RestoreTask(s.ctx, task.ID)
	s.ErrorIs(err, ErrNotFound)

	// Purge only removes entries older than the cutoff.
	s.Require().NoError(s.service.DeleteTask(s.ctx, task.ID, nil))
	purged, err := s.service.PurgeDeletedBefore(s.ctx, s.clock.Add(-time.Hour))
	s.Require().NoError(err)
	s.Zero(purged)
	purged, err = s.service.PurgeDeletedBefore(s.ctx, s.clock.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), purged)
}

func (s *TaskServiceSuite) TestListTasks() {
	first := s.newTask(100)
	_, err := s.service.CreateTask(s.ctx, CreateTaskInput{
		ServiceName: "Voter ID", CustomerName: "Anil", CustomerPhone: "9811122233", AssignedTo: &s.assignee.ID,
	})
	s.Require().NoError(err)

	all, err := s.service.ListTasks(s.ctx, TaskFilter{})
	s.Require().NoError(err)
	s.Len(all, 2)

	pending, err := s.service.ListTasks(s.ctx, TaskFilter{Status: models.TaskStatusPending})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(first.ID, pending[0].ID)

	mine, err := s.service.ListTasks(s.ctx, TaskFilter{AssignedTo: &s.assignee.ID})
	s.Require().NoError(err)
	s.Len(mine, 1)

	byPhone, err := s.service.ListTasks(s.ctx, TaskFilter{Query: "98111"})
	s.Require().NoError(err)
	s.Require().Len(byPhone, 1)
	s.Equal("Anil", byPhone[0].CustomerName)

	otherDay := DayRange(s.clock.AddDate(0, 0, -3), s.loc)
	none, err := s.service.ListTasks(s.ctx, TaskFilter{Range: &otherDay})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *TaskServiceSuite) TestDocuments() {
	task := s.newTask(100)
	doc := models.TaskDocument{Key: "documents/" + task.ID.Hex() + "/a_scan.jpg", Name: "scan.jpg", ContentType: "image/jpeg"}

	updated, err := s.service.AttachDocument(s.ctx, task.ID, doc)
	s.Require().NoError(err)
	s.Require().Len(updated.Documents, 1)
	s.False(updated.Documents[0].Processed)

	// Attaching the same key twice keeps one entry.
	updated, err = s.service.AttachDocument(s.ctx, task.ID, doc)
	s.Require().NoError(err)
	s.Len(updated.Documents, 1)

	s.Require().NoError(s.service.MarkDocumentProcessed(s.ctx, task.ID, doc.Key))
	stored, err := s.service.GetTask(s.ctx, task.ID)
	s.Require().NoError(err)
	s.True(stored.Documents[0].Processed)

	err = s.service.MarkDocumentProcessed(s.ctx, task.ID, "documents/other")
	s.True(errors.Is(err, ErrNotFound))
}

func TestNewTaskService_Defaults(t *testing.T) {
	service := NewTaskService(nil, nil, nil, -1, nil).(*taskService)
	require.Equal(t, time.UTC, service.loc)
	require.Equal(t, db.DefaultMaxRetries, service.maxRetries)
}

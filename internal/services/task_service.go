package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"shopops/portal/internal/db"
	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
	"shopops/portal/internal/payments"
)

// CreateTaskInput carries the fields staff fill in on the new task form.
type CreateTaskInput struct {
	ServiceName    string
	CustomerName   string
	CustomerPhone  string
	CustomerType   models.CustomerType
	Urgency        models.Urgency
	AssignedTo     *primitive.ObjectID
	ServiceCharge  float64
	FinalCharges   float64
	InitialPayment *payments.Request
	Remarks        string
	CreatedBy      *primitive.ObjectID
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	Status     models.TaskStatus
	AssignedTo *primitive.ObjectID
	Range      *DateRange
	Query      string
	Limit      int64
}

// ITaskService defines task lifecycle and payment operations.
type ITaskService interface {
	CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error)
	GetTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	AssignTask(ctx context.Context, taskID, assigneeID primitive.ObjectID) (*models.Task, error)
	UpdateStatus(ctx context.Context, taskID primitive.ObjectID, status models.TaskStatus) (*models.Task, error)
	UpdateCharges(ctx context.Context, taskID primitive.ObjectID, finalCharges float64) (*models.Task, error)
	AddPayment(ctx context.Context, taskID primitive.ObjectID, req payments.Request) (*models.Task, error)
	DeleteTask(ctx context.Context, taskID primitive.ObjectID, deletedBy *primitive.ObjectID) error
	ListDeletedTasks(ctx context.Context, limit int64) ([]models.DeletedTask, error)
	RestoreTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error)
	AttachDocument(ctx context.Context, taskID primitive.ObjectID, doc models.TaskDocument) (*models.Task, error)
	MarkDocumentProcessed(ctx context.Context, taskID primitive.ObjectID, key string) error
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const (
	defaultTaskListLimit = 100
	maxTaskListLimit     = 500
)

type taskService struct {
	db         *mongo.Database
	users      IUserService
	loc        *time.Location
	maxRetries int
	reports    *ReportCache
	now        func() time.Time
}

// NewTaskService creates a task service. loc is the shop time zone used for
// serial numbers; maxRetries bounds the optimistic update loop. Writes
// invalidate reports, which may be nil.
func NewTaskService(database *mongo.Database, users IUserService, loc *time.Location, maxRetries int, reports *ReportCache) ITaskService {
	if loc == nil {
		loc = time.UTC
	}
	if maxRetries < 0 {
		maxRetries = db.DefaultMaxRetries
	}
	return &taskService{
		db:         database,
		users:      users,
		loc:        loc,
		maxRetries: maxRetries,
		reports:    reports,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *taskService) tasks() *mongo.Collection {
	return s.db.Collection(db.TasksCollection)
}

func (s *taskService) deletedTasks() *mongo.Collection {
	return s.db.Collection(db.DeletedTasksCollection)
}

func (s *taskService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	in.ServiceName = strings.TrimSpace(in.ServiceName)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.ServiceName == "" {
		return nil, invalid("serviceName", "is required")
	}
	if in.CustomerName == "" {
		return nil, invalid("customerName", "is required")
	}
	if in.CustomerType == "" {
		in.CustomerType = models.CustomerTypeNew
	}
	if in.CustomerType != models.CustomerTypeNew && in.CustomerType != models.CustomerTypeOld {
		return nil, invalid("customerType", "must be new or old")
	}
	if in.Urgency == "" {
		in.Urgency = models.UrgencyNormal
	}
	if !in.Urgency.Valid() {
		return nil, invalid("urgency", "must be normal, urgent or do_now")
	}

	now := s.now()
	task := &models.Task{
		CreatedAt:     now,
		UpdatedAt:     now,
		ServiceName:   in.ServiceName,
		CustomerName:  in.CustomerName,
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		CustomerType:  in.CustomerType,
		Urgency:       in.Urgency,
		ServiceCharge: in.ServiceCharge,
		FinalCharges:  in.FinalCharges,
		Documents:     []models.TaskDocument{},
		Remarks:       in.Remarks,
		Status:        models.TaskStatusPending,
		CreatedBy:     in.CreatedBy,
	}

	if in.AssignedTo != nil {
		assignee, err := s.lookupAssignee(ctx, *in.AssignedTo)
		if err != nil {
			return nil, err
		}
		task.AssignedTo = &assignee.ID
		task.AssignedToName = assignee.Name
		task.Status = models.TaskStatusAssigned
	}

	if in.InitialPayment != nil && in.InitialPayment.ReceivedBy == nil {
		in.InitialPayment.ReceivedBy = in.CreatedBy
	}
	if err := payments.Initial(task, in.InitialPayment, now); err != nil {
		return nil, err
	}

	day := DayRange(now, s.loc)
	prefix := now.In(s.loc).Format("20060102")
	dayFilter := bson.M{"createdAt": bson.M{"$gte": day.Start, "$lte": day.End}}

	operation := func() error {
		live, err := s.tasks().CountDocuments(ctx, dayFilter)
		if err != nil {
			return fmt.Errorf("failed to count today's tasks: %w", err)
		}
		deleted, err := s.deletedTasks().CountDocuments(ctx, dayFilter)
		if err != nil {
			return fmt.Errorf("failed to count today's deleted tasks: %w", err)
		}
		task.GenID()
		task.SerialNumber = fmt.Sprintf("%s-%03d", prefix, live+deleted+1)
		_, err = s.tasks().InsertOne(ctx, task)
		return err
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert task (last attempted serial %s): %w", task.SerialNumber, err)
	}
	s.reports.Invalidate(ctx)

	logger.Info("Task created",
		zap.String("task_id", task.ID.Hex()),
		zap.String("serial", task.SerialNumber),
		zap.Float64("final_charges", task.FinalCharges))
	return task, nil
}

func (s *taskService) lookupAssignee(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalid("assignedTo", "unknown staff member")
		}
		return nil, fmt.Errorf("failed to look up assignee %s: %w", userID.Hex(), err)
	}
	if !user.Active {
		return nil, invalid("assignedTo", "staff member is inactive")
	}
	return user, nil
}

func (s *taskService) GetTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	err := s.tasks().FindOne(ctx, bson.M{"_id": taskID}).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding task %s: %w", taskID.Hex(), err)
	}
	return &task, nil
}

func (s *taskService) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	query := bson.M{}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, invalid("status", "unknown status %q", filter.Status)
		}
		query["status"] = filter.Status
	}
	if filter.AssignedTo != nil {
		query["assignedTo"] = *filter.AssignedTo
	}
	if filter.Range != nil {
		query["createdAt"] = bson.M{"$gte": filter.Range.Start, "$lte": filter.Range.End}
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"customerName": pattern},
			bson.M{"customerPhone": pattern},
			bson.M{"serviceName": pattern},
			bson.M{"serialNumber": pattern},
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTaskListLimit
	}
	if limit > maxTaskListLimit {
		limit = maxTaskListLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)

	cursor, err := s.tasks().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// mutate runs a read-modify-write cycle guarded by the task version. The
// change callback edits the loaded task and returns the $set document; it
// runs again on every retry against a fresh read. A nil $set means there is
// nothing to write and the task is returned as loaded.
func (s *taskService) mutate(ctx context.Context, taskID primitive.ObjectID, change func(task *models.Task) (bson.M, error)) (*models.Task, error) {
	var result *models.Task
	operation := func() error {
		task, err := s.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		set, err := change(task)
		if err != nil {
			return err
		}
		if set == nil {
			result = task
			return nil
		}

		now := s.now()
		set["updatedAt"] = now
		filter := bson.M{"_id": taskID, "version": task.Version}
		update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}

		res, err := s.tasks().UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to update task %s: %w", taskID.Hex(), err)
		}
		if res.MatchedCount == 0 {
			logger.Debug("Task version moved during update",
				zap.String("task_id", taskID.Hex()), zap.Int("version", task.Version))
			return ErrVersionConflict
		}
		task.UpdatedAt = now
		task.Version++
		result = task
		s.reports.Invalidate(ctx)
		return nil
	}

	err := db.WithRetries(operation, s.maxRetries, func(err error) bool {
		return errors.Is(err, ErrVersionConflict)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *taskService) AssignTask(ctx context.Context, taskID, assigneeID primitive.ObjectID) (*models.Task, error) {
	assignee, err := s.lookupAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, taskID, func(task *models.Task) (bson.M, error) {
		if task.Status == models.TaskStatusCompleted {
			return nil, fmt.Errorf("%w: completed tasks cannot be reassigned", ErrInvalidTransition)
		}
		task.AssignedTo = &assignee.ID
		task.AssignedToName = assignee.Name
		if task.Status != models.TaskStatusOngoing {
			task.Status = models.TaskStatusAssigned
		}
		return bson.M{
			"assignedTo":     assignee.ID,
			"assignedToName": assignee.Name,
			"status":         task.Status,
		}, nil
	})
}

func (s *taskService) UpdateStatus(ctx context.Context, taskID primitive.ObjectID, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	return s.mutate(ctx, taskID, func(task *models.Task) (bson.M, error) {
		if task.Status == status {
			return nil, nil
		}
		switch status {
		case models.TaskStatusOngoing:
			if task.AssignedTo == nil || task.Status != models.TaskStatusAssigned {
				return nil, fmt.Errorf("%w: only assigned tasks can start", ErrInvalidTransition)
			}
		case models.TaskStatusCompleted:
			if task.Status != models.TaskStatusAssigned && task.Status != models.TaskStatusOngoing {
				return nil, fmt.Errorf("%w: only assigned or ongoing tasks can complete", ErrInvalidTransition)
			}
		default:
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, task.Status, status)
		}
		task.Status = status
		return bson.M{"status": status}, nil
	})
}

func (s *taskService) UpdateCharges(ctx context.Context, taskID primitive.ObjectID, finalCharges float64) (*models.Task, error) {
	return s.mutate(ctx, taskID, func(task *models.Task) (bson.M, error) {
		if err := payments.Recharge(task, finalCharges); err != nil {
			return nil, err
		}
		return bson.M{
			"finalCharges": task.FinalCharges,
			"unpaidAmount": task.UnpaidAmount,
		}, nil
	})
}

func (s *taskService) AddPayment(ctx context.Context, taskID primitive.ObjectID, req payments.Request) (*models.Task, error) {
	task, err := s.mutate(ctx, taskID, func(task *models.Task) (bson.M, error) {
		if payments.HasRequest(task, req.RequestID) {
			logger.Info("Duplicate payment submission ignored",
				zap.String("task_id", taskID.Hex()), zap.String("request_id", req.RequestID))
			return nil, nil
		}
		if _, err := payments.Apply(task, req, s.now()); err != nil {
			return nil, err
		}
		if err := payments.CheckBalance(task); err != nil {
			return nil, fmt.Errorf("task %s: %w", taskID.Hex(), err)
		}
		return bson.M{
			"amountCollected": task.AmountCollected,
			"unpaidAmount":    task.UnpaidAmount,
			"paymentMode":     task.PaymentMode,
			"paymentRemarks":  task.PaymentRemarks,
			"paymentHistory":  task.PaymentHistory,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Payment recorded",
		zap.String("task_id", taskID.Hex()),
		zap.Float64("amount", req.Amount),
		zap.Float64("unpaid", task.UnpaidAmount))
	return task, nil
}

func (s *taskService) DeleteTask(ctx context.Context, taskID primitive.ObjectID, deletedBy *primitive.ObjectID) error {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	deleted := models.DeletedTask{Task: *task, DeletedAt: s.now(), DeletedBy: deletedBy}
	if _, err := s.deletedTasks().ReplaceOne(ctx, bson.M{"_id": taskID}, deleted, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to archive task %s: %w", taskID.Hex(), err)
	}

	res, err := s.tasks().DeleteOne(ctx, bson.M{"_id": taskID, "version": task.Version})
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID.Hex(), err)
	}
	if res.DeletedCount == 0 {
		// The live copy changed or vanished after it was archived.
		if _, cleanupErr := s.deletedTasks().DeleteOne(ctx, bson.M{"_id": taskID}); cleanupErr != nil {
			logger.Error("Failed to drop stale archive copy", cleanupErr, zap.String("task_id", taskID.Hex()))
		}
		return ErrVersionConflict
	}
	s.reports.Invalidate(ctx)

	logger.Info("Task deleted", zap.String("task_id", taskID.Hex()), zap.String("serial", task.SerialNumber))
	return nil
}

func (s *taskService) ListDeletedTasks(ctx context.Context, limit int64) ([]models.DeletedTask, error) {
	if limit <= 0 || limit > maxTaskListLimit {
		limit = defaultTaskListLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "deletedAt", Value: -1}}).SetLimit(limit)
	cursor, err := s.deletedTasks().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query deleted tasks: %w", err)
	}
	defer cursor.Close(ctx)

	deleted := []models.DeletedTask{}
	if err := cursor.All(ctx, &deleted); err != nil {
		return nil, fmt.Errorf("failed to decode deleted tasks: %w", err)
	}
	return deleted, nil
}

func (s *taskService) RestoreTask(ctx context.Context, taskID primitive.ObjectID) (*models.Task, error) {
	var deleted models.DeletedTask
	if err := s.deletedTasks().FindOne(ctx, bson.M{"_id": taskID}).Decode(&deleted); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error finding deleted task %s: %w", taskID.Hex(), err)
	}

	task := deleted.Task
	task.UpdatedAt = s.now()
	task.Version++
	if _, err := s.tasks().InsertOne(ctx, task); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: a live task already uses id or serial %s", ErrInvalidTransition, task.SerialNumber)
		}
		return nil, fmt.Errorf("failed to restore task %s: %w", taskID.Hex(), err)
	}
	s.reports.Invalidate(ctx)
	if _, err := s.deletedTasks().DeleteOne(ctx, bson.M{"_id": taskID}); err != nil {
		return nil, fmt.Errorf("task %s restored but archive copy remains: %w", taskID.Hex(), err)
	}

	logger.Info("Task restored", zap.String("task_id", taskID.Hex()), zap.String("serial", task.SerialNumber))
	return &task, nil
}

func (s *taskService) AttachDocument(ctx context.Context, taskID primitive.ObjectID, doc models.TaskDocument) (*models.Task, error) {
	if doc.Key == "" {
		return nil, invalid("key", "is required")
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = s.now()
	}
	doc.Processed = false
	return s.mutate(ctx, taskID, func(task *models.Task) (bson.M, error) {
		for _, existing := range task.Documents {
			if existing.Key == doc.Key {
				return nil, nil
			}
		}
		task.Documents = append(task.Documents, doc)
		return bson.M{"documents": task.Documents}, nil
	})
}

func (s *taskService) MarkDocumentProcessed(ctx context.Context, taskID primitive.ObjectID, key string) error {
	res, err := s.tasks().UpdateOne(ctx,
		bson.M{"_id": taskID, "documents.key": key},
		bson.M{
			"$set": bson.M{"documents.$.processed": true, "updatedAt": s.now()},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("failed to mark document %s processed: %w", key, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *taskService) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.deletedTasks().DeleteMany(ctx, bson.M{"deletedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge deleted tasks: %w", err)
	}
	return res.DeletedCount, nil
}

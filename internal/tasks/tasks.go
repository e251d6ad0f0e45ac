package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shopops/portal/internal/config"
	"shopops/portal/internal/email"
	"shopops/portal/internal/logger"
	"shopops/portal/internal/models"
	"shopops/portal/internal/services"
	"shopops/portal/internal/storage"
)

// Task types handled by the background worker.
const (
	TypeDocumentProcess = "document:process"
	TypeDailySummary    = "report:daily_summary"
	TypePurgeDeleted    = "tasks:purge_deleted"
)

const (
	QueueDefault   = "default"
	QueueDocuments = "documents"
	QueueLow       = "low"
)

// RedisOpt derives asynq connection options from an existing Redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisOpt(rdb))
}

// DocumentTaskPayload identifies an uploaded task document.
type DocumentTaskPayload struct {
	TaskID string `json:"task_id"`
	Key    string `json:"key"`
}

// NewDocumentProcessTask builds the task that normalises an uploaded document.
func NewDocumentProcessTask(taskID primitive.ObjectID, key string) (*asynq.Task, error) {
	payload, err := json.Marshal(DocumentTaskPayload{TaskID: taskID.Hex(), Key: key})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document task payload: %w", err)
	}
	return asynq.NewTask(TypeDocumentProcess, payload, asynq.Queue(QueueDocuments), asynq.MaxRetry(5)), nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies of the task handlers.
type TaskProcessor struct {
	cfg           *config.Config
	emailSender   email.Sender
	storage       storage.IS3Storage
	taskService   services.ITaskService
	reportService services.IReportService
	now           func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	taskService services.ITaskService,
	reportService services.IReportService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:           cfg,
		emailSender:   emailSender,
		storage:       storageService,
		taskService:   taskService,
		reportService: reportService,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetupServer builds the asynq server and its handler mux. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		RedisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				QueueDefault:   3,
				QueueDocuments: 5,
				QueueLow:       1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Background task failed", err,
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDocumentProcess, processor.HandleDocumentProcessTask)
	mux.HandleFunc(TypeDailySummary, processor.HandleDailySummaryTask)
	mux.HandleFunc(TypePurgeDeleted, processor.HandlePurgeDeletedTask)
	return srv, mux
}

// NewScheduler registers the periodic tasks on their cron specs, evaluated in
// the shop time zone.
func NewScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(rdb), &asynq.SchedulerOpts{Location: cfg.Location})

	if _, err := scheduler.Register(cfg.DailySummaryCron, asynq.NewTask(TypeDailySummary, nil, asynq.Queue(QueueDefault))); err != nil {
		return nil, fmt.Errorf("invalid DAILY_SUMMARY_CRON %q: %w", cfg.DailySummaryCron, err)
	}
	if _, err := scheduler.Register(cfg.PurgeCron, asynq.NewTask(TypePurgeDeleted, nil, asynq.Queue(QueueLow))); err != nil {
		return nil, fmt.Errorf("invalid PURGE_CRON %q: %w", cfg.PurgeCron, err)
	}
	return scheduler, nil
}

// --- Task Handlers ---

// HandleDocumentProcessTask shrinks oversized images and marks the document processed.
func (p *TaskProcessor) HandleDocumentProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload DocumentTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal document task payload: %v: %w", err, asynq.SkipRetry)
	}
	taskID, err := primitive.ObjectIDFromHex(payload.TaskID)
	if err != nil {
		return fmt.Errorf("invalid task id %q in payload: %w", payload.TaskID, asynq.SkipRetry)
	}
	log := logger.Logger.With(zap.String("task_id", payload.TaskID), zap.String("key", payload.Key))

	maxSizeBytes := int64(p.cfg.DocumentMaxSizeMB) * 1024 * 1024
	data, contentType, err := p.storage.GetObject(ctx, payload.Key, maxSizeBytes)
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		log.Warn("Document object missing, upload probably never completed")
		return fmt.Errorf("document object not found: %w", asynq.SkipRetry)
	case errors.Is(err, storage.ErrObjectTooLarge):
		log.Warn("Document exceeds size limit", zap.Int64("max_bytes", maxSizeBytes))
		return fmt.Errorf("document exceeds max size: %w", asynq.SkipRetry)
	case err != nil:
		return err
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	if strings.HasPrefix(contentType, "image/") {
		if err := p.normalizeImage(ctx, payload.Key, data, maxSizeBytes, log); err != nil {
			return err
		}
	} else {
		log.Debug("Document is not an image, nothing to resize", zap.String("content_type", contentType))
	}

	if err := p.taskService.MarkDocumentProcessed(ctx, taskID, payload.Key); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			log.Warn("Task or document vanished before processing finished")
			return fmt.Errorf("document no longer attached: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to mark document processed: %w", err)
	}

	log.Info("Document processed")
	return nil
}

func (p *TaskProcessor) normalizeImage(ctx context.Context, key string, data []byte, maxSizeBytes int64, log *zap.Logger) error {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn("Undecodable image document", zap.Error(err))
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.DocumentMaxDimension)
	width, height := uint(img.Bounds().Dx()), uint(img.Bounds().Dy())
	if maxDim == 0 || (width <= maxDim && height <= maxDim) {
		return nil
	}

	resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to re-encode resized image: %w", err)
	}
	if maxSizeBytes > 0 && int64(buf.Len()) > maxSizeBytes {
		return fmt.Errorf("resized image still exceeds max size: %w", asynq.SkipRetry)
	}
	if err := p.storage.PutObject(ctx, key, buf.Bytes(), "image/jpeg"); err != nil {
		return err
	}

	log.Info("Resized document image",
		zap.String("format", format),
		zap.Uint("from_width", width), zap.Uint("from_height", height),
		zap.Int("to_width", resized.Bounds().Dx()), zap.Int("to_height", resized.Bounds().Dy()))
	return nil
}

// HandleDailySummaryTask emails the shop's numbers for the current day.
func (p *TaskProcessor) HandleDailySummaryTask(ctx context.Context, t *asynq.Task) error {
	now := p.now()
	day := services.DayRange(now, p.cfg.Location)

	dashboard, err := p.reportService.Dashboard(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to build daily summary: %w", err)
	}

	subject := fmt.Sprintf("%s %s", email.SubjectDailySummary, day.Start.Format("2006-01-02"))
	body := FormatDailySummary(dashboard)

	if p.cfg.SummaryEmailTo == "" {
		logger.Info("Daily summary (SUMMARY_EMAIL_TO not set)", zap.String("subject", subject), zap.String("summary", body))
		return nil
	}

	to := strings.Split(p.cfg.SummaryEmailTo, ",")
	for i := range to {
		to[i] = strings.TrimSpace(to[i])
	}
	raw := email.BuildMessage(p.cfg.SmtpFromAddress, to, subject, body, now)
	if err := p.emailSender.Send(ctx, to, subject, raw); err != nil {
		return fmt.Errorf("failed to send daily summary: %w", err)
	}
	logger.Info("Daily summary sent", zap.Strings("to", to))
	return nil
}

// FormatDailySummary renders a dashboard as the plain text mail body.
func FormatDailySummary(d *models.Dashboard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary for %s\n\n", d.Start.Format("Mon, 02 Jan 2006"))
	fmt.Fprintf(&sb, "Tasks\n")
	fmt.Fprintf(&sb, "  New:        %d\n", d.TasksSummary.NewTasks)
	fmt.Fprintf(&sb, "  Unassigned: %d\n", d.TasksSummary.Unassigned)
	fmt.Fprintf(&sb, "  Assigned:   %d\n", d.TasksSummary.Assigned)
	fmt.Fprintf(&sb, "  Ongoing:    %d\n", d.TasksSummary.Ongoing)
	fmt.Fprintf(&sb, "  Completed:  %d\n\n", d.TasksSummary.Completed)
	fmt.Fprintf(&sb, "Profit:   %.2f\n", d.ProfitExpenses.TotalProfit)
	fmt.Fprintf(&sb, "Expenses: %.2f\n\n", d.ProfitExpenses.TotalExpenses)
	fmt.Fprintf(&sb, "Sales by department\n")
	if len(d.SalesRanking.ByDepartment) == 0 {
		fmt.Fprintf(&sb, "  (no sales)\n")
	}
	for i, dept := range d.SalesRanking.ByDepartment {
		fmt.Fprintf(&sb, "  %d. %s: %.2f\n", i+1, dept.Department, dept.Total)
	}
	return sb.String()
}

// HandlePurgeDeletedTask permanently removes tasks deleted longer ago than the retention period.
func (p *TaskProcessor) HandlePurgeDeletedTask(ctx context.Context, t *asynq.Task) error {
	cutoff := p.now().Add(-p.cfg.DeletedRetention)
	purged, err := p.taskService.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	logger.Info("Purged deleted tasks", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	return nil
}

package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"shopops/portal/internal/db"
	"shopops/portal/internal/models"
)

// IReportService aggregates task and ledger data over a date range.
type IReportService interface {
	TasksSummary(ctx context.Context, r DateRange) (*models.TasksSummary, error)
	ProfitExpenses(ctx context.Context, r DateRange) (*models.ProfitExpenses, error)
	SalesRanking(ctx context.Context, r DateRange) (*models.SalesRanking, error)
	Dashboard(ctx context.Context, r DateRange) (*models.Dashboard, error)
}

type reportService struct {
	db    *mongo.Database
	cache *ReportCache
}

// NewReportService creates a report service. A nil cache disables caching.
func NewReportService(database *mongo.Database, cache *ReportCache) IReportService {
	return &reportService{db: database, cache: cache}
}

func rangeMatch(field string, r DateRange) bson.D {
	return bson.D{{Key: "$match", Value: bson.M{field: bson.M{"$gte": r.Start, "$lte": r.End}}}}
}

// TasksSummary counts live tasks created in the range. NewTasks is every task
// created in the range; the remaining buckets split them by current status,
// with pending reported as unassigned.
func (s *reportService) TasksSummary(ctx context.Context, r DateRange) (*models.TasksSummary, error) {
	return cached(ctx, s.cache, "tasks-summary", r, func() (*models.TasksSummary, error) {
		pipeline := mongo.Pipeline{
			rangeMatch("createdAt", r),
			{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
		}
		cursor, err := s.db.Collection(db.TasksCollection).Aggregate(ctx, pipeline)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate task summary: %w", err)
		}
		defer cursor.Close(ctx)

		var rows []struct {
			Status models.TaskStatus `bson:"_id"`
			Count  int64             `bson:"count"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode task summary: %w", err)
		}

		summary := &models.TasksSummary{}
		for _, row := range rows {
			summary.NewTasks += row.Count
			switch row.Status {
			case models.TaskStatusPending:
				summary.Unassigned += row.Count
			case models.TaskStatusAssigned:
				summary.Assigned += row.Count
			case models.TaskStatusOngoing:
				summary.Ongoing += row.Count
			case models.TaskStatusCompleted:
				summary.Completed += row.Count
			}
		}
		return summary, nil
	})
}

func (s *reportService) sumField(ctx context.Context, collection, dateField, sumField string, r DateRange) (decimal.Decimal, error) {
	pipeline := mongo.Pipeline{
		rangeMatch(dateField, r),
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$" + sumField}}}},
	}
	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s.%s: %w", collection, sumField, err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode %s.%s total: %w", collection, sumField, err)
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(rows[0].Total).Round(2), nil
}

func (s *reportService) ProfitExpenses(ctx context.Context, r DateRange) (*models.ProfitExpenses, error) {
	return cached(ctx, s.cache, "profit-expenses", r, func() (*models.ProfitExpenses, error) {
		profit, err := s.sumField(ctx, db.SalesEntriesCollection, "entryDate", "profit", r)
		if err != nil {
			return nil, err
		}
		expenses, err := s.sumField(ctx, db.ExpensesCollection, "expenseDate", "amount", r)
		if err != nil {
			return nil, err
		}
		return &models.ProfitExpenses{
			TotalProfit:   profit.InexactFloat64(),
			TotalExpenses: expenses.InexactFloat64(),
		}, nil
	})
}

// SalesRanking totals SALE entries per department, largest first.
func (s *reportService) SalesRanking(ctx context.Context, r DateRange) (*models.SalesRanking, error) {
	return cached(ctx, s.cache, "sales-ranking", r, func() (*models.SalesRanking, error) {
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: bson.M{
				"entryDate": bson.M{"$gte": r.Start, "$lte": r.End},
				"entryType": models.EntryTypeSale,
			}}},
			{{Key: "$group", Value: bson.M{"_id": "$department", "total": bson.M{"$sum": "$amount"}}}},
			{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}}},
		}
		cursor, err := s.db.Collection(db.SalesEntriesCollection).Aggregate(ctx, pipeline)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate sales ranking: %w", err)
		}
		defer cursor.Close(ctx)

		ranking := &models.SalesRanking{ByDepartment: []models.DepartmentTotal{}}
		if err := cursor.All(ctx, &ranking.ByDepartment); err != nil {
			return nil, fmt.Errorf("failed to decode sales ranking: %w", err)
		}
		for i := range ranking.ByDepartment {
			ranking.ByDepartment[i].Total = decimal.NewFromFloat(ranking.ByDepartment[i].Total).Round(2).InexactFloat64()
		}
		return ranking, nil
	})
}

// Dashboard runs the three reports concurrently.
func (s *reportService) Dashboard(ctx context.Context, r DateRange) (*models.Dashboard, error) {
	dashboard := &models.Dashboard{Start: r.Start, End: r.End}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		summary, err := s.TasksSummary(gctx, r)
		if err != nil {
			return err
		}
		dashboard.TasksSummary = *summary
		return nil
	})
	g.Go(func() error {
		totals, err := s.ProfitExpenses(gctx, r)
		if err != nil {
			return err
		}
		dashboard.ProfitExpenses = *totals
		return nil
	})
	g.Go(func() error {
		ranking, err := s.SalesRanking(gctx, r)
		if err != nil {
			return err
		}
		dashboard.SalesRanking = *ranking
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dashboard, nil
}

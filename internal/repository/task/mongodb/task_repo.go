package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartTodo/internal/logger"
	"smartTodo/internal/models/task"
	repo "smartTodo/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

// document is the stored shape of a task; _id is the ObjectID the store assigns.
type document struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	TaskName     string             `bson:"task_name"`
	Assignee     *string            `bson:"assignee"`
	DueDateTime  *time.Time         `bson:"due_date_time"`
	Priority     string             `bson:"priority"`
	OriginalText *string            `bson:"original_text"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func toDocument(t *task.Task) document {
	return document{
		TaskName:     t.Name,
		Assignee:     t.Assignee,
		DueDateTime:  t.DueDateTime,
		Priority:     string(t.Priority),
		OriginalText: t.OriginalText,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (d document) toTask() *task.Task {
	priority := task.Priority(d.Priority)
	if !priority.Valid() {
		priority = task.DefaultPriority
	}
	t := &task.Task{
		ID:           d.ID.Hex(),
		Name:         d.TaskName,
		Assignee:     d.Assignee,
		DueDateTime:  d.DueDateTime,
		Priority:     priority,
		OriginalText: d.OriginalText,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if t.DueDateTime != nil {
		due := t.DueDateTime.UTC()
		t.DueDateTime = &due
	}
	return t
}

type Storage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func New(ctx context.Context, uri, database, collection string) (*Storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		logger.Error("Repository: failed to create MongoDB client", err)
		return nil, fmt.Errorf("creating client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("Repository: MongoDB ping failed", err)
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to MongoDB",
		zap.String("database", database),
		zap.String("collection", collection))
	return &Storage{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (s *Storage) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	logger.Info("Repository: disconnected from MongoDB")
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("Repository: MongoDB ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()

	res, err := s.collection.InsertOne(ctx, toDocument(taskToCreate))
	if err != nil {
		logger.Error("Repository: failed to insert task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("inserting task: %w", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("inserting task: unexpected id type %T", res.InsertedID)
	}
	taskToCreate.ID = oid.Hex()

	warnIfSlow(start)
	return nil
}

func (s *Storage) List(ctx context.Context) ([]*task.Task, error) {
	start := time.Now()

	// ObjectIDs grow with insertion time
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		logger.Error("Repository: failed to list tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		logger.Error("Repository: failed to decode tasks", err)
		return nil, fmt.Errorf("decoding tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.toTask())
	}

	warnIfSlow(start)
	return tasks, nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*task.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	var d document
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return d.toTask(), nil
}

func (s *Storage) Update(ctx context.Context, id string, patch task.Patch) (*task.Task, error) {
	start := time.Now()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repo.ErrNotFound
	}

	set := bson.D{{Key: "updated_at", Value: time.Now().UTC().Truncate(time.Millisecond)}}
	if patch.Name != nil {
		set = append(set, bson.E{Key: "task_name", Value: *patch.Name})
	}
	if patch.Assignee != nil {
		set = append(set, bson.E{Key: "assignee", Value: *patch.Assignee})
	}
	if patch.DueDateTime != nil {
		set = append(set, bson.E{Key: "due_date_time", Value: *patch.DueDateTime})
	}
	if patch.Priority != nil {
		set = append(set, bson.E{Key: "priority", Value: string(*patch.Priority)})
	}

	var d document
	err = s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to update task", err, zap.String("task_id", id))
		return nil, fmt.Errorf("updating task: %w", err)
	}

	warnIfSlow(start)
	return d.toTask(), nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return repo.ErrNotFound
	}

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.String("task_id", id))
		return fmt.Errorf("deleting task: %w", err)
	}
	if res.DeletedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func warnIfSlow(start time.Time) {
	if time.Since(start) > slowQuery {
		logger.Warn("Repository: slow query", zap.Duration("ms", time.Since(start)))
	}
}

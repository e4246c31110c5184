/*
Package store persists chapters, a move tree together with the cursor
position a student left it at, in MongoDB, and caches cursor positions in
Redis so that navigation does not rewrite the whole tree.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/chessrep/movetree"
)

// ErrChapterNotFound is returned when no chapter has the requested id.
var ErrChapterNotFound = errors.New("store: chapter not found")

const defaultTimeout = 5 * time.Second

// A Chapter is one annotated game of a study.
type Chapter struct {
	ID        string                 `bson:"_id" json:"id"`
	StudyID   string                 `bson:"study_id" json:"studyId"`
	Name      string                 `bson:"name" json:"name"`
	Notes     string                 `bson:"notes,omitempty" json:"notes,omitempty"`
	StartFEN  string                 `bson:"start_fen,omitempty" json:"startFen,omitempty"`
	Tags      map[string]string      `bson:"tags,omitempty" json:"tags,omitempty"`
	Result    string                 `bson:"result,omitempty" json:"result,omitempty"`
	Tree      *movetree.Line         `bson:"game_tree" json:"gameTree"`
	Path      []movetree.BranchPoint `bson:"current_path" json:"currentPath"`
	MoveIndex int                    `bson:"current_move_index" json:"currentMoveIndex"`
	CreatedAt time.Time              `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time              `bson:"updated_at" json:"updatedAt"`
}

// NewChapter returns a chapter with a fresh id and an empty tree.
func NewChapter(studyID, name string) *Chapter {
	return &Chapter{
		ID:      uuid.New().String(),
		StudyID: studyID,
		Name:    name,
		Tree:    movetree.NewLine(),
	}
}

// Cursor returns a cursor over a copy of the chapter's tree, positioned
// where the chapter was saved.
func (ch *Chapter) Cursor(opts ...movetree.Option) (*movetree.Cursor, error) {
	root := ch.Tree
	if root == nil {
		root = movetree.NewLine()
	}
	c := movetree.NewCursor(opts...)
	if err := c.Restore(&movetree.GameTree{Root: root}, ch.Path, ch.MoveIndex); err != nil {
		return nil, fmt.Errorf("store: chapter %s: %w", ch.ID, err)
	}
	return c, nil
}

// Capture copies the cursor's tree and position into the chapter.
func (ch *Chapter) Capture(c *movetree.Cursor) {
	snap := c.Snapshot()
	ch.Tree = snap.Tree.Root
	ch.Path = snap.Path
	ch.MoveIndex = snap.MoveIndex
}

// ChapterStore keeps chapters in a MongoDB collection.
type ChapterStore struct {
	coll    *mongo.Collection
	log     *zap.SugaredLogger
	timeout time.Duration
}

// NewChapterStore returns a store over coll.
func NewChapterStore(coll *mongo.Collection, log *zap.SugaredLogger) *ChapterStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ChapterStore{
		coll:    coll,
		log:     log,
		timeout: defaultTimeout,
	}
}

// Create inserts ch, assigning an id and timestamps when missing.
func (s *ChapterStore) Create(ctx context.Context, ch *Chapter) error {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	if ch.Tree == nil {
		ch.Tree = movetree.NewLine()
	}
	now := time.Now().UTC()
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	ch.UpdatedAt = now

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, ch); err != nil {
		return fmt.Errorf("store: insert chapter %s: %w", ch.ID, err)
	}
	s.log.Debugw("chapter created", "id", ch.ID, "study", ch.StudyID)
	return nil
}

// Get returns the chapter with the given id.
func (s *ChapterStore) Get(ctx context.Context, id string) (*Chapter, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var ch Chapter
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&ch)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrChapterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get chapter %s: %w", id, err)
	}
	return &ch, nil
}

// ListByStudy returns the chapters of a study, oldest first.
func (s *ChapterStore) ListByStudy(ctx context.Context, studyID string) ([]*Chapter, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"study_id": studyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list study %s: %w", studyID, err)
	}
	defer cursor.Close(ctx)

	var chapters []*Chapter
	if err := cursor.All(ctx, &chapters); err != nil {
		return nil, fmt.Errorf("store: decode study %s: %w", studyID, err)
	}
	return chapters, nil
}

// SaveCursor stores the cursor's tree and position in the chapter.
func (s *ChapterStore) SaveCursor(ctx context.Context, id string, c *movetree.Cursor) error {
	snap := c.Snapshot()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"game_tree":          snap.Tree.Root,
		"current_path":       snap.Path,
		"current_move_index": snap.MoveIndex,
		"updated_at":         time.Now().UTC(),
	}}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("store: save cursor of %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrChapterNotFound
	}
	s.log.Debugw("cursor saved", "id", id, "path", snap.Path, "moveIndex", snap.MoveIndex)
	return nil
}

// Delete removes the chapter with the given id.
func (s *ChapterStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: delete chapter %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrChapterNotFound
	}
	return nil
}

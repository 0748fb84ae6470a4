package album

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SaveResult reports the outcome of one save: the write counters from the
// document store plus any non-fatal stream synchronization failure.
type SaveResult struct {
	ID       primitive.ObjectID
	Inserted bool
	Matched  int64
	Modified int64
	Upserted int64

	// StreamErr records a stream synchronization failure; the document write
	// proceeded regardless.
	StreamErr error
}

// OK reports whether the store actually wrote something. An update that
// matches and modifies nothing is a logical failure even though no error was
// raised.
func (r *SaveResult) OK() bool {
	return r.Inserted || r.Matched > 0 || r.Modified > 0 || r.Upserted > 0
}

// Save runs the persistence protocol: assign an identifier on first save,
// synchronize recency-stream membership, then write the document (insert for
// first-time saves, upserting update after). The stream is synchronized
// before the document on purpose: the feed may briefly run ahead of the
// durable record, but a failed document write is surfaced for retry and the
// stream entry is corrected on the next successful save.
func (a *Album) Save(ctx context.Context) (*SaveResult, error) {
	if a.docs == nil {
		return nil, &PersistenceError{Op: "save", Err: errors.New("no document store configured")}
	}

	// a new album inserts even when the caller supplied its identifier
	firstSave := a.isNew || a.id.IsZero()
	generatedID := false
	if a.id.IsZero() {
		a.id = primitive.NewObjectID()
		generatedID = true
	}

	streamErr := a.syncStream(ctx)
	if streamErr != nil {
		log.Printf("album: stream sync failed for %s: %v", a.id.Hex(), streamErr)
	}

	doc := a.Document()
	result := &SaveResult{ID: a.id, StreamErr: streamErr}

	if firstSave {
		if err := a.docs.InsertOne(ctx, doc); err != nil {
			if generatedID {
				a.id = primitive.NilObjectID // id stays absent until the first successful save
			}
			return nil, &PersistenceError{Op: "insert", Err: err}
		}
		result.Inserted = true
		a.isNew = false
		return result, nil
	}

	update := bson.M{"$set": bson.M{
		"dir":          doc.Dir,
		"slug":         doc.Slug,
		"imageUrl":     doc.ImageURL,
		"creator":      doc.Creator,
		"name":         doc.Name,
		"url":          doc.URL,
		"previewImage": doc.PreviewImage,
		"description":  doc.Description,
		"keywords":     doc.Keywords,
		"public":       doc.Public,
		"images":       doc.Images,
		"streamId":     doc.StreamID,
		"post_id":      doc.PostID,
	}}

	res, err := a.docs.UpdateOne(ctx, bson.M{"_id": a.id}, update, true)
	if err != nil {
		return nil, &PersistenceError{Op: "update", Err: err}
	}
	result.Matched = res.Matched
	result.Modified = res.Modified
	result.Upserted = res.Upserted
	return result, nil
}

// syncStream reconciles the album's recency-stream membership with its public
// flag. Public albums get exactly one entry (any prior entry is replaced);
// private albums get none. Failures never abort the document write.
func (a *Album) syncStream(ctx context.Context) error {
	if a.stream == nil {
		return nil
	}

	if !a.public {
		if a.streamID == "" {
			return nil
		}
		if err := a.stream.Remove(ctx, a.streamID); err != nil {
			return fmt.Errorf("remove entry %s: %w", a.streamID, err)
		}
		a.streamID = ""
		return nil
	}

	entry := StreamEntry{
		ID:          a.id.Hex(),
		Slug:        a.slug,
		Name:        a.name,
		Owner:       a.owner,
		Access:      "public",
		Preview:     a.previewImage(),
		Description: a.description,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	if a.streamID != "" {
		if err := a.stream.Remove(ctx, a.streamID); err != nil {
			log.Printf("album: failed to replace stream entry %s: %v", a.streamID, err)
		}
	}

	entryID, err := a.stream.Add(ctx, payload)
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	a.streamID = entryID
	return nil
}

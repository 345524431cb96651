// Package sync implements the batch reconciler used by offline-capable
// clients.  One generic algorithm processes an ordered list of
// directives for any entity kind; the entity-specific behavior (field
// parsing, validation, ownership checks, persistence) is supplied
// through the EntitySyncer interface.  The whole batch runs in a single
// transaction: if any item fails, everything is rolled back and the
// caller must resubmit the entire batch.
package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/iliyamo/medication-adherence/internal/repository"
)

// Item statuses reported back to the client.  Items reported as
// created/updated/deleted are only durable when the batch as a whole
// committed; on a batch with errors they were rolled back too.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
	StatusError   = "error"
)

// Directive is the envelope common to every sync item: an optional
// entity ID, an optional deletion flag, and the raw field payload which
// the entity syncer parses itself.
type Directive struct {
	ID        *uint64         `json:"id"`
	IsDeleted bool            `json:"is_deleted"`
	Payload   json.RawMessage `json:"-"`
}

// Result reports the outcome of one directive.  Errors carries either a
// plain message string or a field-keyed map, matching what clients
// expect from the sync endpoints.
type Result struct {
	Status string      `json:"status"`
	ID     *uint64     `json:"id"`
	Errors interface{} `json:"errors,omitempty"`
}

// EntitySyncer is the capability interface one entity kind implements to
// participate in sync.  All three operations run inside the batch
// transaction and must scope every access to the calling user.
//
// Create parses and validates the payload, performs any ownership checks
// (for example, a new reminder's schedule must belong to the caller) and
// inserts the entity, returning its generated ID.  Update applies the
// payload as a partial update to an existing owned entity.  Delete
// removes an owned entity.  All of them signal failure with
// sql.ErrNoRows (missing/unowned), repository.ErrForbidden,
// repository.ErrConflict or *repository.ValidationError.
type EntitySyncer interface {
	Create(ctx context.Context, tx *sql.Tx, userID uint64, payload json.RawMessage) (uint64, error)
	Update(ctx context.Context, tx *sql.Tx, userID, id uint64, payload json.RawMessage) error
	Delete(ctx context.Context, tx *sql.Tx, userID, id uint64) error
}

// ParseBatch decodes the request body into directives.  The body must be
// a JSON array of objects; anything else fails, which handlers map to a
// 400 response.  Each element keeps its raw bytes so the entity syncer
// can parse the payload fields itself.
func ParseBatch(body []byte) ([]Directive, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.New("request body must be a JSON array")
	}
	items := make([]Directive, 0, len(raw))
	for _, rm := range raw {
		var d Directive
		if err := json.Unmarshal(rm, &d); err != nil {
			return nil, errors.New("each sync item must be a JSON object")
		}
		d.Payload = rm
		items = append(items, d)
	}
	return items, nil
}

// Run processes the batch inside one transaction.  The returned results
// line up with the input directives.  hasErrors reports whether any item
// failed; in that case the transaction was rolled back and none of the
// non-failing items were persisted either.
func Run(ctx context.Context, db *sql.DB, userID uint64, items []Directive, syncer EntitySyncer) (results []Result, hasErrors bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	results = make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, apply(ctx, tx, userID, item, syncer))
	}
	for _, res := range results {
		if res.Status == StatusError {
			hasErrors = true
			break
		}
	}
	if hasErrors {
		// Rollback happens in the deferred cleanup; the per-item results
		// still describe what each item would have done.
		return results, true, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	committed = true
	return results, false, nil
}

// apply resolves a single directive against the four-way decision table:
// id × deletion flag.
func apply(ctx context.Context, tx *sql.Tx, userID uint64, item Directive, syncer EntitySyncer) Result {
	switch {
	case item.IsDeleted && item.ID != nil:
		if err := syncer.Delete(ctx, tx, userID, *item.ID); err != nil {
			return errorResult(item.ID, err, "not found for deletion")
		}
		return Result{Status: StatusDeleted, ID: item.ID}
	case item.IsDeleted && item.ID == nil:
		return Result{Status: StatusError, ID: nil, Errors: "cannot delete without an id"}
	case item.ID != nil:
		if err := syncer.Update(ctx, tx, userID, *item.ID, item.Payload); err != nil {
			return errorResult(item.ID, err, "not found")
		}
		return Result{Status: StatusUpdated, ID: item.ID}
	default:
		id, err := syncer.Create(ctx, tx, userID, item.Payload)
		if err != nil {
			return errorResult(nil, err, "not found")
		}
		return Result{Status: StatusCreated, ID: &id}
	}
}

// errorResult translates repository errors into the per-item error shape.
func errorResult(id *uint64, err error, notFoundMsg string) Result {
	var ve *repository.ValidationError
	switch {
	case errors.As(err, &ve):
		return Result{Status: StatusError, ID: id, Errors: ve.Fields}
	case errors.Is(err, sql.ErrNoRows):
		return Result{Status: StatusError, ID: id, Errors: notFoundMsg}
	case errors.Is(err, repository.ErrForbidden):
		return Result{Status: StatusError, ID: id, Errors: "referenced resource does not belong to user"}
	case errors.Is(err, repository.ErrConflict):
		return Result{Status: StatusError, ID: id, Errors: "conflicts with an existing record"}
	default:
		return Result{Status: StatusError, ID: id, Errors: err.Error()}
	}
}

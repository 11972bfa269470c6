package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/printstock/internal/domain"
)

// commit persists an intake in three writes:
//
//	validated -> detailed_recorded -> ledger_appended -> catalog_updated -> committed
//
// The product lock is held from the detailed record write until committed;
// Resume takes the same lock and continues from the recorded state.
func (uc *StockUC) commit(ctx context.Context, rec *domain.DetailedStockRecord) error {
	unlock, err := uc.Locks.Lock(ctx, productLockKey(rec.ProductID))
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}
	defer unlock()

	rec.State = domain.StateDetailedRecorded
	if err := uc.Records.Append(ctx, rec); err != nil {
		commitFailures.WithLabelValues(string(domain.StateValidated)).Inc()
		return domain.WrapStore("record intake", err)
	}
	return uc.advance(ctx, rec, false)
}

// advance steps rec until committed. Callers hold the product lock. With
// resync set, stock is recomputed from the ledger instead of incremented.
func (uc *StockUC) advance(ctx context.Context, rec *domain.DetailedStockRecord, resync bool) error {
	for rec.State != domain.StateCommitted {
		next, err := uc.step(ctx, rec, &resync)
		if err == nil {
			err = uc.Records.UpdateState(ctx, rec.ID, next)
		}
		if err != nil {
			commitFailures.WithLabelValues(string(rec.State)).Inc()
			log.Error().Err(err).
				Str("submission", rec.ID.String()).
				Str("state", string(rec.State)).
				Msg("intake commit interrupted")
			return domain.WrapStore(fmt.Sprintf("commit submission %s at %s", rec.ID, rec.State), err)
		}
		rec.State = next
	}
	return nil
}

func (uc *StockUC) step(ctx context.Context, rec *domain.DetailedStockRecord, resync *bool) (domain.CommitState, error) {
	switch rec.State {
	case domain.StateDetailedRecorded:
		_, err := uc.Ledger.FindBySubmission(ctx, rec.ID)
		if err == nil {
			// an earlier attempt wrote the entry; it may have moved stock too
			*resync = true
			return domain.StateLedgerAppended, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return rec.State, err
		}
		sub := rec.ID
		entry := &domain.LedgerEntry{
			ID:           uuid.New(),
			ProductID:    rec.ProductID,
			SubmissionID: &sub,
			Quantity:     rec.Quantity,
			Direction:    domain.DirectionIn,
			Timestamp:    time.Now().UTC(),
		}
		if err := uc.Ledger.Append(ctx, entry); err != nil {
			return rec.State, err
		}
		return domain.StateLedgerAppended, nil
	case domain.StateLedgerAppended:
		if *resync {
			return domain.StateCatalogUpdated, uc.resync(ctx, rec.ProductID)
		}
		if err := uc.Products.AdjustStock(ctx, rec.ProductID, rec.Quantity); err != nil {
			return rec.State, err
		}
		return domain.StateCatalogUpdated, nil
	case domain.StateCatalogUpdated:
		return domain.StateCommitted, nil
	}
	return rec.State, fmt.Errorf("unexpected commit state %q", rec.State)
}

// resync sets the product stock to the sum of its ledger. Callers hold the
// product lock.
func (uc *StockUC) resync(ctx context.Context, productID uuid.UUID) error {
	sum, err := uc.Ledger.SumByProduct(ctx, productID)
	if err != nil {
		return err
	}
	return uc.Products.SetStock(ctx, productID, sum)
}

// Resume replays the commit of one submission from its recorded state.
// It is idempotent: a committed submission is left untouched.
func (uc *StockUC) Resume(ctx context.Context, submissionID uuid.UUID) error {
	rec, err := uc.Records.FindByID(ctx, submissionID)
	if err != nil {
		return domain.WrapStore("find detailed record", err)
	}
	if rec.State == domain.StateCommitted {
		return nil
	}

	unlock, err := uc.Locks.Lock(ctx, productLockKey(rec.ProductID))
	if err != nil {
		return fmt.Errorf("lock product: %w", err)
	}
	defer unlock()

	// the state may have moved while waiting for the lock
	rec, err = uc.Records.FindByID(ctx, submissionID)
	if err != nil {
		return domain.WrapStore("find detailed record", err)
	}
	if rec.State == domain.StateCommitted {
		return nil
	}
	log.Info().Str("submission", rec.ID.String()).Str("state", string(rec.State)).Msg("resuming intake commit")
	return uc.advance(ctx, rec, true)
}

// ResumePending resumes every submission that has not reached committed and
// returns how many were completed.
func (uc *StockUC) ResumePending(ctx context.Context) (int, error) {
	pending, err := uc.Records.ListPending(ctx)
	if err != nil {
		return 0, domain.WrapStore("list pending records", err)
	}
	done := 0
	var errs []error
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := uc.Resume(ctx, rec.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

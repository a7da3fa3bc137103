package controllers

import (
	"net/http"

	"github.com/avenqor/avenqor-backend/api/responses"
	"github.com/avenqor/avenqor-backend/internal/generation"
	"github.com/avenqor/avenqor-backend/internal/purchases"
	"github.com/avenqor/avenqor-backend/pkg/db/models"
	"github.com/avenqor/avenqor-backend/pkg/enums"
	pkgerrors "github.com/avenqor/avenqor-backend/pkg/errors"
	"github.com/avenqor/avenqor-backend/pkg/logger"
)

// PurchaseProgress returns the live generation snapshot for one record.
// When the snapshot has expired it falls back to a terminal view derived
// from the durable record.
func PurchaseProgress(store *generation.ProgressStore, records purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil || records == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "progress store unavailable"))
			return
		}

		record, err := ownedPurchase(r, records)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		progress, err := store.Get(r.Context(), record.ID)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if progress == nil {
			progress = fallbackProgress(record)
		}

		responses.WriteSuccess(w, progress)
	}
}

func fallbackProgress(record *models.PurchaseRecord) *generation.Progress {
	progress := &generation.Progress{
		RecordID:  record.ID,
		Stage:     enums.GenerationStageQueued,
		UpdatedAt: record.UpdatedAt,
	}
	switch record.Status {
	case enums.PurchaseStatusReady, enums.PurchaseStatusCompleted:
		progress.Stage = enums.GenerationStageCompleted
	case enums.PurchaseStatusFailed:
		progress.Stage = enums.GenerationStageError
		if record.ErrorMessage != nil {
			progress.Error = *record.ErrorMessage
		}
	}
	progress.Percent = progress.Stage.Percent()
	return progress
}

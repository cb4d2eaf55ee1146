package tasks

import (
	"encoding/json"

	"github.com/geocoder89/conventionhub/internal/domain/participation"
	"github.com/geocoder89/conventionhub/internal/domain/task"
)

// Factory builds validated, encoded tasks for the known kinds. The caller
// identity is passed explicitly; nothing is read from ambient state.
type Factory struct{}

func NewFactory() *Factory { return &Factory{} }

func (f *Factory) NewUserWebinarRegistration(actorID *string, userID, webinarID int64) (task.Task, error) {
	return build(task.KindUserWebinarRegistration, actorID, UserWebinarRegistrationPayload{
		UserID:    userID,
		WebinarID: webinarID,
	})
}

func (f *Factory) NewExportWebinarVisitors(actorID string, webinarID int64, fileName string, rows []participation.VisitorRow) (task.Task, error) {
	return build(task.KindExportWebinarVisitors, &actorID, ExportWebinarVisitorsPayload{
		WebinarID:   webinarID,
		FileName:    fileName,
		RequestedBy: actorID,
		Rows:        rows,
	})
}

func (f *Factory) NewRecalculateWebinarStatistic(actorID *string, webinarID int64) (task.Task, error) {
	return build(task.KindRecalculateWebinarStatistic, actorID, RecalculateWebinarStatisticPayload{
		WebinarID: webinarID,
	})
}

func build(k task.Kind, actorID *string, payload any) (task.Task, error) {
	if err := ValidatePayload(k, payload); err != nil {
		return task.Task{}, err
	}

	raw, err := EncodePayload(k, payload)
	if err != nil {
		return task.Task{}, err
	}

	if actorID != nil && *actorID == "" {
		actorID = nil
	}

	return task.New(task.CreateRequest{
		Kind:    k,
		Payload: json.RawMessage(raw),
		ActorID: actorID,
	}), nil
}

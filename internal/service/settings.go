package service

import (
	"context"

	"pearstock/backend/internal/domain"
)

func (s *Service) GetSettings(ctx context.Context) (domain.SettingsResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SettingsResponse{}, err
	}

	sizes, err := s.settings.SuggestedSizes(ctx, actor.UserID)
	if err != nil {
		return domain.SettingsResponse{}, err
	}
	prefs, err := s.settings.NotificationPrefs(ctx, actor.UserID)
	if err != nil {
		return domain.SettingsResponse{}, err
	}
	return domain.SettingsResponse{SuggestedSizes: sizes, NotificationPrefs: prefs}, nil
}

// UpdateSettings saves whichever sections the request carries and returns
// the resolved settings.
func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.SettingsResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SettingsResponse{}, err
	}

	if req.SuggestedSizes != nil {
		if err := s.settings.SaveSuggestedSizes(ctx, actor.UserID, req.SuggestedSizes); err != nil {
			return domain.SettingsResponse{}, err
		}
	}
	if req.NotificationPrefs != nil {
		if err := s.settings.SaveNotificationPrefs(ctx, actor.UserID, *req.NotificationPrefs); err != nil {
			return domain.SettingsResponse{}, err
		}
	}
	return s.GetSettings(ctx)
}

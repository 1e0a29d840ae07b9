// Package onboard walks a new institution through setup: campus boundaries
// from KML and the WiFi allow-list. Progress lives in a key-value hash until
// every step is done.
package onboard

import (
	"context"
	"io"

	"attendly/internal/academic"
	"attendly/internal/apierr"
	"attendly/internal/geo"
	"attendly/internal/identity"
	"attendly/internal/kv"
)

// Onboarding steps tracked in the progress hash.
const (
	StepKMLUpload = "kmlUpload"
	StepWifiSetup = "wifiSetup"
)

var allSteps = []string{StepKMLUpload, StepWifiSetup}

// Service ingests onboarding data and tracks completion.
type Service struct {
	academics *academic.Repository
	users     *identity.Repository
	progress  kv.Store
}

// NewService wires the onboarding service.
func NewService(academics *academic.Repository, users *identity.Repository, progress kv.Store) *Service {
	return &Service{academics: academics, users: users, progress: progress}
}

// IngestKML parses campus polygons and stores one campus per placemark.
// Returns the updated onboarding progress.
func (s *Service) IngestKML(ctx context.Context, userID, institutionID string, kml io.Reader) (map[string]string, error) {
	campuses, err := geo.ParseKML(kml)
	if err != nil {
		return nil, apierr.Validation("no campus data found in KML")
	}

	for _, campus := range campuses {
		if _, err := s.academics.CreateCampus(ctx, institutionID, campus.Name, campus.Ring); err != nil {
			return nil, err
		}
	}
	if err := s.users.SetInstitutionCampusCount(ctx, institutionID, len(campuses)); err != nil {
		return nil, err
	}

	return s.completeStep(ctx, userID, institutionID, StepKMLUpload)
}

// AddWifiIPs merges the given addresses into the institution's allow-list.
// Returns the updated onboarding progress.
func (s *Service) AddWifiIPs(ctx context.Context, userID, institutionID string, ips []string) (map[string]string, error) {
	if len(ips) == 0 {
		return nil, apierr.Validation("WiFi IPs are required")
	}
	if _, err := s.academics.MergeAllowedIPs(ctx, institutionID, ips); err != nil {
		return nil, err
	}
	return s.completeStep(ctx, userID, institutionID, StepWifiSetup)
}

// completeStep marks a step done and, once all steps are, flips the user's
// and institution's onboarded flags and drops the hash.
func (s *Service) completeStep(ctx context.Context, userID, institutionID, step string) (map[string]string, error) {
	key := "onboarding:" + institutionID
	if err := s.progress.HSet(ctx, key, step, "true"); err != nil {
		return nil, err
	}
	progress, err := s.progress.HGetAll(ctx, key)
	if err != nil {
		return nil, err
	}

	for _, st := range allSteps {
		if progress[st] != "true" {
			return progress, nil
		}
	}
	if err := s.users.SetOnboarded(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.SetInstitutionDetailsComplete(ctx, institutionID); err != nil {
		return nil, err
	}
	if err := s.progress.Del(ctx, key); err != nil {
		return nil, err
	}
	return progress, nil
}

package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"attendly/internal/apierr"
	"attendly/internal/kv"
)

const orderAmount = 10000 // smallest currency unit, fixed plan price

// Service runs the order flow and answers license checks, caching the
// active license in the key-value store.
type Service struct {
	repo        *Repository
	gateway     PaymentGateway
	cache       kv.Store
	cacheTTL    time.Duration
	frontendURL string
}

// NewService wires the license service.
func NewService(repo *Repository, gateway PaymentGateway, cache kv.Store, cacheTTL time.Duration, frontendURL string) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &Service{repo: repo, gateway: gateway, cache: cache, cacheTTL: cacheTTL, frontendURL: frontendURL}
}

// Order is the response to a checkout initiation.
type Order struct {
	LicenseID   string `json:"licenseId"`
	LicenseKey  string `json:"licenseKey"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	OrderID     string `json:"orderId,omitempty"`
	State       string `json:"state,omitempty"`
	Status      string `json:"status,omitempty"`
}

// CreateOrder mints a pending license and initiates payment. An existing
// valid license short-circuits with no new order.
func (s *Service) CreateOrder(ctx context.Context, institutionID, licType string) (Order, bool, error) {
	if licType == "" {
		return Order{}, false, apierr.Validation("type of license is required")
	}
	if institutionID == "" {
		return Order{}, false, apierr.Validation("institution id is required")
	}

	existing, err := s.repo.ActiveByInstitution(ctx, institutionID)
	if err != nil {
		return Order{}, false, err
	}
	if existing != nil {
		return Order{
			LicenseID:  existing.ID,
			LicenseKey: existing.LicenseKey,
			Status:     existing.Status,
		}, true, nil
	}

	merchantOrderID := uuid.NewString()
	licenseKey := fmt.Sprintf("LIC-%d-%d", time.Now().UnixMilli(), rand.Intn(10000))
	issuedAt := time.Now().UTC()
	expiresAt := expiryFor(licType, issuedAt)

	lic, err := s.repo.Create(ctx, License{
		LicenseKey:    licenseKey,
		Type:          licType,
		Status:        StatusPending,
		InstitutionID: institutionID,
		IssuedAt:      issuedAt,
		ExpiresAt:     &expiresAt,
	})
	if err != nil {
		return Order{}, false, err
	}

	redirectURL := fmt.Sprintf("%s/license/verify-payment?merchantOrderId=%s&licenseKey=%s",
		s.frontendURL, merchantOrderID, licenseKey)
	resp, err := s.gateway.Pay(ctx, merchantOrderID, orderAmount, redirectURL)
	if err != nil {
		_ = s.repo.UpdateStatusByKey(ctx, licenseKey, StatusRevoked)
		return Order{}, false, apierr.Upstream("failed to connect with payment gateway", err)
	}
	if resp.RedirectURL == "" || resp.State != PaymentPending {
		_ = s.repo.UpdateStatusByKey(ctx, licenseKey, StatusRevoked)
		return Order{}, false, apierr.Validation("payment initiation failed")
	}

	return Order{
		LicenseID:   lic.ID,
		LicenseKey:  lic.LicenseKey,
		RedirectURL: resp.RedirectURL,
		OrderID:     resp.OrderID,
		State:       resp.State,
	}, false, nil
}

// VerifyPayment resolves an order's state and settles the license. The
// returned path is the frontend page to send the payer to.
func (s *Service) VerifyPayment(ctx context.Context, institutionID, merchantOrderID, licenseKey string) (string, error) {
	if merchantOrderID == "" || licenseKey == "" {
		return "", apierr.Validation("merchantOrderId and licenseKey are required")
	}
	state, err := s.gateway.OrderStatus(ctx, merchantOrderID)
	if err != nil {
		return "", apierr.Upstream("failed to fetch order status", err)
	}
	switch state {
	case PaymentCompleted:
		if err := s.repo.UpdateStatusByKey(ctx, licenseKey, StatusActive); err != nil {
			return "", err
		}
		s.invalidate(ctx, institutionID)
		return s.frontendURL + "/payment/success", nil
	case PaymentFailed:
		if err := s.repo.UpdateStatusByKey(ctx, licenseKey, StatusRevoked); err != nil {
			return "", err
		}
		return s.frontendURL + "/payment/failure", nil
	default:
		return s.frontendURL + "/payment/pending", nil
	}
}

// Status returns the institution's latest license, flipping it to expired
// on the way out when overdue.
func (s *Service) Status(ctx context.Context, institutionID string) (*License, error) {
	lic, err := s.repo.LatestByInstitution(ctx, institutionID)
	if err != nil || lic == nil {
		return lic, err
	}
	if lic.Status == StatusActive && lic.ExpiresAt != nil && lic.ExpiresAt.Before(time.Now()) {
		if err := s.repo.MarkExpired(ctx, lic.ID); err != nil {
			return nil, err
		}
		lic.Status = StatusExpired
		s.invalidate(ctx, institutionID)
	}
	return lic, nil
}

// Active returns the institution's valid license, serving from cache when
// possible. Returns a Forbidden error when none exists.
func (s *Service) Active(ctx context.Context, institutionID string) (*License, error) {
	cacheKey := "license:" + institutionID
	if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
		var lic License
		if err := json.Unmarshal([]byte(raw), &lic); err == nil {
			return &lic, nil
		}
	} else if !errors.Is(err, kv.ErrNotFound) {
		log.Printf("license cache read failed: %v", err)
	}

	lic, err := s.repo.ActiveByInstitution(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, apierr.Forbidden("no valid license found for this institution")
	}
	if raw, err := json.Marshal(lic); err == nil {
		if err := s.cache.SetEX(ctx, cacheKey, string(raw), s.cacheTTL); err != nil {
			log.Printf("license cache write failed: %v", err)
		}
	}
	return lic, nil
}

func (s *Service) invalidate(ctx context.Context, institutionID string) {
	if err := s.cache.Del(ctx, "license:"+institutionID); err != nil {
		log.Printf("license cache invalidate failed: %v", err)
	}
}

func expiryFor(licType string, issuedAt time.Time) time.Time {
	switch licType {
	case TypeMonthly:
		return issuedAt.AddDate(0, 1, 0)
	case TypeQuarterly:
		return issuedAt.AddDate(0, 3, 0)
	case TypeAnnually:
		return issuedAt.AddDate(1, 0, 0)
	default:
		return issuedAt.AddDate(1, 0, 0)
	}
}

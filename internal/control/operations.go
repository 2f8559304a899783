package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/vinspect/internal/infra/postgres"
	"github.com/vietddude/vinspect/internal/infra/vin"
)

// Guarded operations: each wraps one outbound dependency call behind its
// breaker. The route layer composes these; it never reaches the raw clients.

// SendSMS delivers a notification through the SMS provider.
func (s *Service) SendSMS(ctx context.Context, to, body string) (string, error) {
	result, err := s.registry.Get(DepSMSProvider).Execute(ctx, func(ctx context.Context) (any, error) {
		return s.sms.Send(ctx, to, body)
	}, nil)
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// DecodeVIN resolves vehicle attributes for a VIN, consulting the cache
// first. Cache failures degrade to a decoder call, never to a user error.
func (s *Service) DecodeVIN(ctx context.Context, vinNumber string) (*vin.DecodeResult, error) {
	if cached := s.cachedDecode(ctx, vinNumber); cached != nil {
		return cached, nil
	}

	result, err := s.registry.Get(DepVINDecoder).Execute(ctx, func(ctx context.Context) (any, error) {
		return s.vin.Decode(ctx, vinNumber)
	}, nil)
	if err != nil {
		return nil, err
	}
	decoded := result.(*vin.DecodeResult)

	s.storeDecode(ctx, vinNumber, decoded)
	return decoded, nil
}

// cachedDecode reads the decode cache through the cache breaker. The
// fallback turns any cache-side failure into a miss.
func (s *Service) cachedDecode(ctx context.Context, vinNumber string) *vin.DecodeResult {
	if s.cache == nil {
		return nil
	}

	result, err := s.registry.Get(DepCache).Execute(ctx, func(ctx context.Context) (any, error) {
		payload, found, err := s.cache.CachedDecode(ctx, vinNumber)
		if err != nil {
			return nil, err
		}
		if !found {
			return "", nil
		}
		return payload, nil
	}, func(ctx context.Context) (any, error) {
		// Cache down: pretend it was a miss.
		return "", nil
	})
	if err != nil || result.(string) == "" {
		return nil
	}

	var decoded vin.DecodeResult
	if err := json.Unmarshal([]byte(result.(string)), &decoded); err != nil {
		slog.Warn("Corrupt decode cache entry", "vin", vinNumber, "error", err)
		return nil
	}
	return &decoded
}

func (s *Service) storeDecode(ctx context.Context, vinNumber string, decoded *vin.DecodeResult) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(decoded)
	if err != nil {
		return
	}
	_, _ = s.registry.Get(DepCache).Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, s.cache.StoreDecode(ctx, vinNumber, string(payload))
	}, func(ctx context.Context) (any, error) {
		// Best effort: a failed cache write costs one future decode.
		return nil, nil
	})
}

// RenderReport produces the inspection report PDF.
func (s *Service) RenderReport(ctx context.Context, html []byte) ([]byte, error) {
	result, err := s.registry.Get(DepPDFRenderer).Execute(ctx, func(ctx context.Context) (any, error) {
		return s.pdf.Render(ctx, html)
	}, nil)
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// FindInspection looks up one inspection record.
func (s *Service) FindInspection(ctx context.Context, id string) (*postgres.Inspection, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not configured")
	}
	result, err := s.registry.Get(DepDatabase).Execute(ctx, func(ctx context.Context) (any, error) {
		return s.db.FindInspection(ctx, id)
	}, nil)
	if err != nil {
		return nil, err
	}
	return result.(*postgres.Inspection), nil
}

// CountInspections returns the number of inspections in a status.
func (s *Service) CountInspections(ctx context.Context, status string) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not configured")
	}
	result, err := s.registry.Get(DepDatabase).Execute(ctx, func(ctx context.Context) (any, error) {
		return s.db.CountInspections(ctx, status)
	}, nil)
	if err != nil {
		return 0, err
	}
	return result.(int64), nil
}

// Session resolves a session token through the cache breaker; any cache
// failure reads as "not logged in" rather than an error page.
func (s *Service) Session(ctx context.Context, token string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	result, err := s.registry.Get(DepCache).Execute(ctx, func(ctx context.Context) (any, error) {
		userID, found, err := s.cache.Session(ctx, token)
		if err != nil {
			return nil, err
		}
		if !found {
			return "", nil
		}
		return userID, nil
	}, func(ctx context.Context) (any, error) {
		return "", nil
	})
	if err != nil {
		return "", false
	}
	userID := result.(string)
	return userID, userID != ""
}

// StoreSession writes a session token.
func (s *Service) StoreSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	if s.cache == nil {
		return fmt.Errorf("cache not configured")
	}
	_, err := s.registry.Get(DepCache).Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, s.cache.StoreSession(ctx, token, userID, ttl)
	}, nil)
	return err
}
